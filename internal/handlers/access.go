package handlers

import (
	"context"
	"errors"

	"gigBack/internal/models"
)

const roleAdmin = "admin"

type engagementGetter interface {
	Get(ctx context.Context, id string) (models.Engagement, error)
}

type venueGetter interface {
	Get(ctx context.Context, id string) (models.Venue, error)
}

type memberLister interface {
	Members(ctx context.Context, bandID string) ([]models.BandMember, error)
}

// Access decides whether the caller may act for a venue or a performer.
// Admins may act for anyone. Every check fails with models.ErrNotPermitted
// when the caller is not allowed.
type Access struct {
	Engagements engagementGetter
	Venues      venueGetter
	Performers  performerGetter
	Bands       memberLister
}

// Venue admits the venue owner and its active members.
func (a *Access) Venue(ctx context.Context, venueID string) error {
	if venueID == "" {
		return models.Missing("venue_id")
	}
	if Role(ctx) == roleAdmin {
		return nil
	}
	v, err := a.Venues.Get(ctx, venueID)
	if err != nil {
		return err
	}
	userID := UserID(ctx)
	if userID == "" {
		return models.ErrNotPermitted
	}
	if v.OwnerID == userID {
		return nil
	}
	for _, m := range v.Members {
		if m.UserID == userID && m.Status == models.VenueMemberActive {
			return nil
		}
	}
	return models.ErrNotPermitted
}

// Performer admits the account behind a solo act, or a band's admin.
func (a *Access) Performer(ctx context.Context, performerID string) error {
	if performerID == "" {
		return models.Missing("performer_id")
	}
	if Role(ctx) == roleAdmin {
		return nil
	}
	p, err := a.Performers.Get(ctx, performerID)
	if err != nil {
		return err
	}
	if p.Kind == models.PerformerBand {
		return a.BandAdmin(ctx, p.ID)
	}
	if userID := UserID(ctx); userID != "" && p.UserID == userID {
		return nil
	}
	return models.ErrNotPermitted
}

// BandAdmin admits the member holding the band's admin flag.
func (a *Access) BandAdmin(ctx context.Context, bandID string) error {
	if bandID == "" {
		return models.Missing("band_id")
	}
	if Role(ctx) == roleAdmin {
		return nil
	}
	userID := UserID(ctx)
	if userID == "" {
		return models.ErrNotPermitted
	}
	members, err := a.Bands.Members(ctx, bandID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.IsAdmin && m.UserID == userID {
			return nil
		}
	}
	return models.ErrNotPermitted
}

// EngagementVenue admits whoever may act for the engagement's venue.
func (a *Access) EngagementVenue(ctx context.Context, engagementID string) (models.Engagement, error) {
	if engagementID == "" {
		return models.Engagement{}, models.Missing("engagement_id")
	}
	e, err := a.Engagements.Get(ctx, engagementID)
	if err != nil {
		return e, err
	}
	return e, a.Venue(ctx, e.VenueID)
}

// Party admits the engagement's venue side or the given performer.
func (a *Access) Party(ctx context.Context, engagementID, performerID string) error {
	_, err := a.EngagementVenue(ctx, engagementID)
	if err == nil || performerID == "" || !errors.Is(err, models.ErrForbidden) {
		return err
	}
	return a.Performer(ctx, performerID)
}
