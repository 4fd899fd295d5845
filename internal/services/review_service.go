package services

import (
	"context"

	"github.com/google/uuid"

	"gigBack/internal/models"
)

// ReviewService records one review per side per booked engagement.
type ReviewService struct {
	engagements EngagementRepository
	venues      VenueRepository
	performers  PerformerRepository
	reviews     ReviewRepository
	locker      Locker
	events      Publisher
	clock       Clock
	cfg         Config
}

// Submit stores a review written by the venue about the performer or the
// other way round, and bumps the reviewed profile's counters.
func (s *ReviewService) Submit(ctx context.Context, engagementID, writtenBy, rating, text string) (models.Review, error) {
	if writtenBy != models.RoleVenue && writtenBy != models.RolePerformer {
		return models.Review{}, models.Missing("written_by")
	}
	if rating != models.RatingPositive && rating != models.RatingNegative {
		return models.Review{}, models.Missing("rating")
	}
	unlock, err := s.locker.Lock(ctx, engagementKey(engagementID))
	if err != nil {
		return models.Review{}, models.External("lock engagement", err)
	}
	defer unlock()

	e, err := s.engagements.Get(ctx, engagementID)
	if err != nil {
		return models.Review{}, err
	}
	if !e.Booked() {
		return models.Review{}, models.ErrNotBooked
	}
	if (writtenBy == models.RoleVenue && e.VenueHasReviewed) || (writtenBy == models.RolePerformer && e.PerformerHasReviewed) {
		return models.Review{}, models.ErrDuplicateReview
	}

	r, err := s.reviews.Create(ctx, models.Review{
		ID:           uuid.NewString(),
		EngagementID: e.ID,
		PerformerID:  e.BookedPerformerID,
		VenueID:      e.VenueID,
		WrittenBy:    writtenBy,
		Rating:       rating,
		Text:         text,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		return r, err
	}

	positive := rating == models.RatingPositive
	if writtenBy == models.RoleVenue {
		e.VenueHasReviewed = true
		err = s.performers.AddReview(ctx, e.BookedPerformerID, positive)
	} else {
		e.PerformerHasReviewed = true
		err = s.venues.AddReview(ctx, e.VenueID, positive)
	}
	if err != nil {
		return r, err
	}
	e.UpdatedAt = s.clock.Now()
	if _, err := s.engagements.Update(ctx, e); err != nil {
		return r, err
	}
	s.events.Publish(ctx, models.Event{
		Type:         models.EventReviewSubmitted,
		EngagementID: e.ID,
		PerformerID:  e.BookedPerformerID,
		VenueID:      e.VenueID,
		SubjectID:    r.ID,
		Status:       rating,
		At:           r.CreatedAt,
	})
	return r, nil
}
