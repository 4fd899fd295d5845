package repositories

import (
	"context"

	"gigBack/internal/models"
)

// IdentityResolver reads display identities straight from the profile tables.
type IdentityResolver struct {
	Venues     *VenueRepository
	Performers *PerformerRepository
	Bands      *BandRepository
}

func (r *IdentityResolver) Venue(ctx context.Context, venueID string) (models.Venue, error) {
	return r.Venues.Get(ctx, venueID)
}

// Performer returns the profile and, for bands, the current member set.
func (r *IdentityResolver) Performer(ctx context.Context, performerID string) (models.Performer, []models.BandMember, error) {
	p, err := r.Performers.Get(ctx, performerID)
	if err != nil {
		return p, nil, err
	}
	if p.Kind != models.PerformerBand {
		return p, nil, nil
	}
	members, err := r.Bands.Members(ctx, performerID)
	if err != nil {
		return p, nil, err
	}
	return p, members, nil
}
