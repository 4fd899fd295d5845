package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gigBack/internal/fsm"
	"gigBack/internal/models"
)

// DisputeService lets a venue freeze a pending fee while its dispute window is open.
type DisputeService struct {
	engagements    EngagementRepository
	disputes       DisputeRepository
	fees           FeeRepository
	locker         Locker
	scheduler      Scheduler
	correspondence *CorrespondenceService
	notifier       Notifier
	identity       IdentityResolver
	events         Publisher
	clock          Clock
	log            Logger
	cfg            Config
}

// OpenDispute freezes the performer's pending fee for the engagement. The
// clear time is checked against the clock on every call.
func (s *DisputeService) OpenDispute(ctx context.Context, performerID, engagementID, reason, detail string) (models.Dispute, error) {
	if reason == "" {
		return models.Dispute{}, models.Missing("reason")
	}
	unlock, err := s.locker.Lock(ctx, engagementKey(engagementID))
	if err != nil {
		return models.Dispute{}, models.External("lock engagement", err)
	}
	defer unlock()

	e, err := s.engagements.Get(ctx, engagementID)
	if err != nil {
		return models.Dispute{}, err
	}
	if e.BookedPerformerID != performerID {
		return models.Dispute{}, models.ErrNotBooked
	}
	fee, err := s.pendingFee(ctx, engagementID, performerID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !s.clock.Now().Before(fee.ClearAt) {
		return models.Dispute{}, models.ErrDisputeWindowClosed
	}

	if err := s.fees.UpdateStatus(ctx, fee.ID, models.FeePending, models.FeeInDispute, reason); err != nil {
		return models.Dispute{}, err
	}
	for _, t := range []string{fee.ClearTask, e.ClearFeeTask, e.AutoMessageTask} {
		if t == "" {
			continue
		}
		if err := ignoreNotFound(s.scheduler.Cancel(ctx, t)); err != nil {
			s.log.Errorf("cancel trigger %s for disputed engagement %s: %v", t, e.ID, err)
		}
	}

	for attempt := 0; ; attempt++ {
		if app, _ := e.Latest(performerID); app != nil {
			if err := fsm.Apply(app, models.ApplicationInDispute); err != nil {
				s.log.Errorf("engagement %s: %v", e.ID, err)
			}
		}
		e.DisputeLogged = true
		e.FeeStatus = models.FeeStatusInDispute
		e.VenueHasReviewed = false
		e.ClearFeeTask = ""
		e.AutoMessageTask = ""
		e.UpdatedAt = s.clock.Now()
		saved, err := s.engagements.Update(ctx, e)
		if err == nil {
			e = saved
			break
		}
		if !models.IsRetryable(err) || attempt+1 >= s.cfg.MaxAttempts {
			s.log.Errorf("mark engagement %s disputed: %v", e.ID, err)
			break
		}
		if e, err = s.engagements.Get(ctx, engagementID); err != nil {
			s.log.Errorf("reload engagement %s: %v", engagementID, err)
			break
		}
	}

	d, err := s.disputes.Create(ctx, models.Dispute{
		ID:           uuid.NewString(),
		EngagementID: e.ID,
		PerformerID:  performerID,
		VenueID:      e.VenueID,
		Reason:       reason,
		Detail:       detail,
		Status:       models.DisputeOpen,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		return d, err
	}

	if err := s.correspondence.OnDispute(ctx, e, performerID); err != nil {
		s.log.Errorf("dispute message for engagement %s: %v", e.ID, err)
	}
	s.emailParties(ctx, e, performerID, reason)
	s.events.Publish(ctx, models.Event{
		Type:         models.EventDisputeOpened,
		EngagementID: e.ID,
		PerformerID:  performerID,
		VenueID:      e.VenueID,
		SubjectID:    d.ID,
		Status:       models.FeeInDispute,
		At:           d.CreatedAt,
	})
	return d, nil
}

func (s *DisputeService) pendingFee(ctx context.Context, engagementID, performerID string) (models.Fee, error) {
	list, err := s.fees.ListByEngagement(ctx, engagementID)
	if err != nil {
		return models.Fee{}, err
	}
	var found *models.Fee
	for i := range list {
		if list[i].PerformerID != performerID {
			continue
		}
		if list[i].Status == models.FeePending {
			return list[i], nil
		}
		found = &list[i]
	}
	if found != nil {
		return models.Fee{}, models.ErrFeeNotPending
	}
	return models.Fee{}, models.ErrFeeNotFound
}

// Disputes lists the disputes logged for an engagement.
func (s *DisputeService) Disputes(ctx context.Context, engagementID string) ([]models.Dispute, error) {
	return s.disputes.ListByEngagement(ctx, engagementID)
}

func (s *DisputeService) emailParties(ctx context.Context, e models.Engagement, performerID, reason string) {
	var recipients []string
	if v, err := s.identity.Venue(ctx, e.VenueID); err == nil && v.Email != "" {
		recipients = append(recipients, v.Email)
	}
	if p, _, err := s.identity.Performer(ctx, performerID); err == nil && p.Email != "" {
		recipients = append(recipients, p.Email)
	}
	body := fmt.Sprintf("A dispute was logged for the gig on %s.\nReason: %s\nThe fee is withheld until the dispute is resolved.\n", formatDate(e), reason)
	for _, to := range recipients {
		if err := s.notifier.SendEmail(ctx, to, "Gig dispute logged", body); err != nil {
			s.log.Errorf("dispute email to %s: %v", to, err)
		}
	}
}
