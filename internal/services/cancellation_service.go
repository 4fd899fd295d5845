package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gigBack/internal/models"
)

// CancellationService unwinds bookings and cascades engagement deletion.
// Follow-up steps are independent; a failed one is journaled and the rest
// still run.
type CancellationService struct {
	engagements    EngagementRepository
	venues         VenueRepository
	performers     PerformerRepository
	cancellations  CancellationRepository
	locker         Locker
	scheduler      Scheduler
	correspondence *CorrespondenceService
	fees           *FeeService
	notifier       Notifier
	identity       IdentityResolver
	events         Publisher
	journal        *Journal
	clock          Clock
	log            Logger
	cfg            Config
}

// CancelByPerformer removes the booked performer, re-pends everyone else and
// reopens the engagement to new applicants.
func (s *CancellationService) CancelByPerformer(ctx context.Context, engagementID, performerID, reason string) (models.Engagement, error) {
	return s.cancel(ctx, engagementID, performerID, reason, models.CancelledByPerformer)
}

// CancelByVenue does the same cleanup but leaves the engagement closed.
func (s *CancellationService) CancelByVenue(ctx context.Context, engagementID, performerID, reason string) (models.Engagement, error) {
	return s.cancel(ctx, engagementID, performerID, reason, models.CancelledByVenue)
}

func (s *CancellationService) cancel(ctx context.Context, engagementID, performerID, reason, party string) (models.Engagement, error) {
	if performerID == "" {
		return models.Engagement{}, models.Missing("performer_id")
	}
	if reason == "" {
		return models.Engagement{}, models.Missing("reason")
	}
	unlock, err := s.locker.Lock(ctx, engagementKey(engagementID))
	if err != nil {
		return models.Engagement{}, models.External("lock engagement", err)
	}
	defer unlock()

	var (
		e     models.Engagement
		tasks []string
	)
	for attempt := 0; ; attempt++ {
		e, err = s.engagements.Get(ctx, engagementID)
		if err != nil {
			return e, err
		}
		if e.BookedPerformerID != performerID {
			return e, models.ErrNotBooked
		}
		tasks = tasks[:0]
		for _, t := range []string{e.ClearFeeTask, e.AutoMessageTask} {
			if t != "" {
				tasks = append(tasks, t)
			}
		}

		kept := e.Applications[:0:0]
		for _, a := range e.Applications {
			if a.PerformerID != performerID {
				kept = append(kept, a)
			}
		}
		e.Applications = kept
		repend(&e, performerID)
		e.ClearBooking()
		e.CancellationReason = reason
		if party == models.CancelledByPerformer {
			e.Status = models.EngagementOpen
		} else {
			e.Status = models.EngagementClosed
		}
		e.UpdatedAt = s.clock.Now()

		saved, err := s.engagements.Update(ctx, e)
		if err == nil {
			e = saved
			break
		}
		if !models.IsRetryable(err) || attempt+1 >= s.cfg.MaxAttempts {
			return e, err
		}
	}

	for _, t := range tasks {
		if err := ignoreNotFound(s.scheduler.Cancel(ctx, t)); err != nil {
			s.journal.Record(ctx, stepCancelTrigger, e.ID, sagaPayload{EngagementID: e.ID, TriggerID: t}, err)
		}
	}
	if err := s.fees.VoidPendingFees(ctx, e.ID, reason); err != nil {
		s.journal.Record(ctx, stepVoidFees, e.ID, sagaPayload{EngagementID: e.ID, Reason: reason}, err)
	}
	if err := ignoreNotFound(s.performers.RemoveApplication(ctx, performerID, e.ID)); err != nil {
		s.journal.Record(ctx, stepUnlinkPerformer, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID}, err)
	}
	if _, err := s.cancellations.Create(ctx, models.Cancellation{
		ID:              uuid.NewString(),
		EngagementID:    e.ID,
		PerformerID:     performerID,
		VenueID:         e.VenueID,
		Reason:          reason,
		CancellingParty: party,
		CreatedAt:       s.clock.Now(),
	}); err != nil {
		s.log.Errorf("log cancellation for engagement %s: %v", e.ID, err)
	}
	if err := s.correspondence.OnCancelled(ctx, e, performerID, party); err != nil {
		s.journal.Record(ctx, stepCancelConversation, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID, Party: party}, err)
	}
	if party == models.CancelledByPerformer {
		if err := s.correspondence.OnReopen(ctx, e, performerID); err != nil {
			s.log.Errorf("reopen fan-out for engagement %s: %v", e.ID, err)
		}
	}
	s.emailCounterparty(ctx, e, performerID, party, reason)

	s.events.Publish(ctx, models.Event{
		Type:         models.EventCancelled,
		EngagementID: e.ID,
		PerformerID:  performerID,
		VenueID:      e.VenueID,
		Status:       party,
		At:           s.clock.Now(),
	})
	if e.Status == models.EngagementOpen {
		s.events.Publish(ctx, models.Event{
			Type:         models.EventReopened,
			EngagementID: e.ID,
			VenueID:      e.VenueID,
			Status:       e.Status,
			At:           s.clock.Now(),
		})
	}
	return e, nil
}

func (s *CancellationService) emailCounterparty(ctx context.Context, e models.Engagement, performerID, party, reason string) {
	var to, name string
	if party == models.CancelledByPerformer {
		v, err := s.identity.Venue(ctx, e.VenueID)
		if err != nil {
			s.log.Errorf("resolve venue %s for cancellation email: %v", e.VenueID, err)
			return
		}
		to, name = v.Email, v.Name
	} else {
		p, _, err := s.identity.Performer(ctx, performerID)
		if err != nil {
			s.log.Errorf("resolve performer %s for cancellation email: %v", performerID, err)
			return
		}
		to, name = p.Email, p.Name
	}
	if to == "" {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nThe gig on %s has been cancelled.\nReason: %s\n", name, formatDate(e), reason)
	if err := s.notifier.SendEmail(ctx, to, "Gig cancelled", body); err != nil {
		s.log.Errorf("cancellation email to %s: %v", to, err)
	}
}

// DeleteEngagement removes the engagement and cascades to the venue's posting
// list, every applicant's history and every applicant's conversation. Leftover
// references from failed steps are journaled and treated as soft-deleted.
func (s *CancellationService) DeleteEngagement(ctx context.Context, engagementID string) error {
	unlock, err := s.locker.Lock(ctx, engagementKey(engagementID))
	if err != nil {
		return models.External("lock engagement", err)
	}
	defer unlock()

	e, err := s.engagements.Get(ctx, engagementID)
	if err != nil {
		return err
	}
	if err := s.engagements.Delete(ctx, e.ID); err != nil {
		return err
	}

	if err := ignoreNotFound(s.venues.RemoveGig(ctx, e.VenueID, e.ID)); err != nil {
		s.journal.Record(ctx, stepUnlinkVenue, e.ID, sagaPayload{EngagementID: e.ID, VenueID: e.VenueID}, err)
	}
	for _, pid := range e.PerformerIDs() {
		if err := ignoreNotFound(s.performers.RemoveApplication(ctx, pid, e.ID)); err != nil {
			s.journal.Record(ctx, stepUnlinkPerformer, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: pid}, err)
		}
	}
	for _, t := range []string{e.ClearFeeTask, e.AutoMessageTask} {
		if t == "" {
			continue
		}
		if err := ignoreNotFound(s.scheduler.Cancel(ctx, t)); err != nil {
			s.journal.Record(ctx, stepCancelTrigger, e.ID, sagaPayload{EngagementID: e.ID, TriggerID: t}, err)
		}
	}
	if err := s.fees.VoidPendingFees(ctx, e.ID, "engagement deleted"); err != nil {
		s.journal.Record(ctx, stepVoidFees, e.ID, sagaPayload{EngagementID: e.ID, Reason: "engagement deleted"}, err)
	}
	if err := s.correspondence.OnDelete(ctx, e.ID); err != nil {
		s.log.Errorf("delete fan-out for engagement %s: %v", e.ID, err)
	}

	s.events.Publish(ctx, models.Event{
		Type:         models.EventDeleted,
		EngagementID: e.ID,
		VenueID:      e.VenueID,
		At:           s.clock.Now(),
	})
	return nil
}
