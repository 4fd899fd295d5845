package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gigBack/internal/models"
)

// FeeService is the only writer of fee entries and performer earnings.
type FeeService struct {
	fees        FeeRepository
	engagements EngagementRepository
	bookings    *EngagementService
	performers  PerformerRepository
	scheduler   Scheduler
	payments    PaymentGateway
	events      Publisher
	journal     *Journal
	clock       Clock
	log         Logger
}

// RecordPendingFee appends a pending entry and schedules its clear trigger.
// A failed schedule leaves ClearTask empty; ClearDue still picks the fee up.
func (s *FeeService) RecordPendingFee(ctx context.Context, performerID, engagementID, venueID string, amount int64, clearAt time.Time) (models.Fee, error) {
	if performerID == "" {
		return models.Fee{}, models.Missing("performer_id")
	}
	if engagementID == "" {
		return models.Fee{}, models.Missing("engagement_id")
	}
	if amount < 0 {
		return models.Fee{}, models.ErrInvalidAmount
	}
	fee := models.Fee{
		ID:           uuid.NewString(),
		PerformerID:  performerID,
		EngagementID: engagementID,
		VenueID:      venueID,
		Amount:       amount,
		Status:       models.FeePending,
		ClearAt:      clearAt,
		CreatedAt:    s.clock.Now(),
	}
	task, err := s.scheduler.Schedule(ctx, models.Trigger{
		ID:           uuid.NewString(),
		Kind:         models.TriggerClearFee,
		EngagementID: engagementID,
		PerformerID:  performerID,
		FeeID:        fee.ID,
		At:           clearAt,
	})
	if err != nil {
		s.log.Errorf("schedule fee clear for %s: %v", fee.ID, err)
	} else {
		fee.ClearTask = task
	}
	saved, err := s.fees.Create(ctx, fee)
	if err != nil {
		if task != "" {
			_ = s.scheduler.Cancel(ctx, task)
		}
		return fee, err
	}
	s.events.Publish(ctx, models.Event{
		Type:         models.EventFeeRecorded,
		EngagementID: engagementID,
		PerformerID:  performerID,
		VenueID:      venueID,
		SubjectID:    saved.ID,
		Status:       saved.Status,
		At:           saved.CreatedAt,
	})
	return saved, nil
}

// ensurePendingFee records the booking's fee unless a live entry already exists.
func (s *FeeService) ensurePendingFee(ctx context.Context, e models.Engagement, performerID string) (models.Fee, error) {
	existing, err := s.fees.ListByEngagement(ctx, e.ID)
	if err != nil {
		return models.Fee{}, err
	}
	for _, f := range existing {
		if f.PerformerID == performerID && f.Status != models.FeeVoid {
			return f, nil
		}
	}
	var amount int64
	if e.AgreedFee != nil {
		amount = *e.AgreedFee
	}
	clearAt := e.StartAt
	if e.DisputeClearingAt != nil {
		clearAt = *e.DisputeClearingAt
	}
	return s.RecordPendingFee(ctx, performerID, e.ID, e.VenueID, amount, clearAt)
}

// ClearFee releases a pending fee into earnings and marks the booking paid.
// A band's fee is split across its members by the shares snapshotted at
// booking; the band account only records the total. Clearing an already
// cleared fee is a no-op.
func (s *FeeService) ClearFee(ctx context.Context, performerID, feeID string) error {
	fee, err := s.fees.Get(ctx, feeID)
	if err != nil {
		return err
	}
	if fee.PerformerID != performerID {
		return models.ErrFeeNotFound
	}
	switch fee.Status {
	case models.FeeCleared:
		return nil
	case models.FeePending:
	default:
		return models.ErrFeeNotPending
	}
	var payout *models.PayoutConfig
	e, err := s.engagements.Get(ctx, fee.EngagementID)
	switch {
	case err == nil:
		payout = e.PayoutConfig
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	if err := s.fees.UpdateStatus(ctx, fee.ID, models.FeePending, models.FeeCleared, ""); err != nil {
		return err
	}
	var errs []error
	for _, c := range feeCredits(fee, payout) {
		if err := s.performers.AdjustEarnings(ctx, c.PerformerID, c.withdrawable(), c.Amount); err != nil {
			s.journal.Record(ctx, stepCreditFee, fee.EngagementID, sagaPayload{
				EngagementID: fee.EngagementID,
				PerformerID:  c.PerformerID,
				FeeID:        fee.ID,
				Amount:       c.Amount,
				TotalOnly:    c.TotalOnly,
			}, err)
			errs = append(errs, err)
		}
	}
	if s.bookings != nil {
		if _, err := s.bookings.markFeeCleared(ctx, fee.EngagementID, performerID); err != nil {
			if isSettled(err) {
				s.log.Infof("fee %s cleared without a paid booking on engagement %s: %v", fee.ID, fee.EngagementID, err)
			} else {
				s.journal.Record(ctx, stepFeeSettled, fee.EngagementID, sagaPayload{EngagementID: fee.EngagementID, PerformerID: performerID, FeeID: fee.ID}, err)
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.events.Publish(ctx, models.Event{
		Type:         models.EventFeeCleared,
		EngagementID: fee.EngagementID,
		PerformerID:  performerID,
		VenueID:      fee.VenueID,
		SubjectID:    fee.ID,
		Status:       models.FeeCleared,
		At:           s.clock.Now(),
	})
	return nil
}

// isSettled reports errors that mean the booking can no longer move to paid.
func isSettled(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrNotBooked) || errors.Is(err, models.ErrInvalidTransition)
}

type feeCredit struct {
	PerformerID string
	Amount      int64
	TotalOnly   bool
}

func (c feeCredit) withdrawable() int64 {
	if c.TotalOnly {
		return 0
	}
	return c.Amount
}

// feeCredits splits a cleared fee into earnings credits. Without a payout
// config for the fee's performer the whole amount goes to that performer.
// Shares are in basis points; the integer remainder goes to the first share
// so the credits always sum to the fee.
func feeCredits(fee models.Fee, payout *models.PayoutConfig) []feeCredit {
	if payout == nil || payout.PerformerID != fee.PerformerID || len(payout.Shares) == 0 {
		return []feeCredit{{PerformerID: fee.PerformerID, Amount: fee.Amount}}
	}
	for _, share := range payout.Shares {
		if share.PerformerID == "" {
			return []feeCredit{{PerformerID: fee.PerformerID, Amount: fee.Amount}}
		}
	}
	out := []feeCredit{{PerformerID: fee.PerformerID, Amount: fee.Amount, TotalOnly: true}}
	members := make([]feeCredit, len(payout.Shares))
	var given int64
	for i, share := range payout.Shares {
		amount := fee.Amount * share.SplitBP / models.FullSplitBP
		members[i] = feeCredit{PerformerID: share.PerformerID, Amount: amount}
		given += amount
	}
	members[0].Amount += fee.Amount - given
	for _, m := range members {
		if m.Amount == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ClearDue clears pending fees whose clear time has passed. It backs up the
// scheduled triggers.
func (s *FeeService) ClearDue(ctx context.Context, limit int) (int, error) {
	due, err := s.fees.ListDue(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range due {
		if err := s.ClearFee(ctx, f.PerformerID, f.ID); err != nil {
			s.log.Errorf("clear fee %s: %v", f.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

// VoidPendingFees voids every pending fee of an engagement and cancels their triggers.
func (s *FeeService) VoidPendingFees(ctx context.Context, engagementID, reason string) error {
	list, err := s.fees.ListByEngagement(ctx, engagementID)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range list {
		if f.Status != models.FeePending {
			continue
		}
		if err := s.fees.UpdateStatus(ctx, f.ID, models.FeePending, models.FeeVoid, reason); err != nil {
			if errors.Is(err, models.ErrFeeNotPending) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if f.ClearTask != "" {
			if err := s.scheduler.Cancel(ctx, f.ClearTask); err != nil && !errors.Is(err, models.ErrNotFound) {
				s.log.Errorf("cancel clear trigger %s: %v", f.ClearTask, err)
			}
		}
		s.events.Publish(ctx, models.Event{
			Type:         models.EventFeeVoided,
			EngagementID: engagementID,
			PerformerID:  f.PerformerID,
			SubjectID:    f.ID,
			Status:       models.FeeVoid,
			At:           s.clock.Now(),
		})
	}
	return errors.Join(errs...)
}

// Fees lists a performer's ledger.
func (s *FeeService) Fees(ctx context.Context, performerID string) ([]models.Fee, error) {
	return s.fees.ListByPerformer(ctx, performerID)
}

// SetPayoutDestination links the account payouts are sent to.
func (s *FeeService) SetPayoutDestination(ctx context.Context, performerID, destination string) error {
	if destination == "" {
		return models.Missing("destination")
	}
	return s.performers.SetPayoutDestination(ctx, performerID, destination)
}

// Payout withdraws cleared earnings to the linked destination. The balance is
// debited first and credited back if the transfer fails.
func (s *FeeService) Payout(ctx context.Context, performerID string, amount int64) (models.Withdrawal, error) {
	if amount <= 0 {
		return models.Withdrawal{}, models.ErrInvalidAmount
	}
	p, err := s.performers.Get(ctx, performerID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if amount > p.WithdrawableEarnings {
		return models.Withdrawal{}, models.ErrInsufficientEarnings
	}
	if p.PayoutDestination == "" {
		return models.Withdrawal{}, models.ErrNoPayoutDestination
	}
	if err := s.performers.AdjustEarnings(ctx, performerID, -amount, 0); err != nil {
		return models.Withdrawal{}, err
	}
	ref, err := s.payments.Payout(ctx, amount, p.PayoutDestination)
	if err != nil {
		if cErr := s.performers.AdjustEarnings(ctx, performerID, amount, 0); cErr != nil {
			s.log.Errorf("restore %d to performer %s after failed payout: %v", amount, performerID, cErr)
		}
		return models.Withdrawal{}, models.External("payout", err)
	}
	w, err := s.fees.CreateWithdrawal(ctx, models.Withdrawal{
		ID:          uuid.NewString(),
		PerformerID: performerID,
		Amount:      amount,
		Destination: p.PayoutDestination,
		PayoutRef:   ref,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		s.log.Errorf("payout %s sent but withdrawal record failed: %v", ref, err)
		return w, err
	}
	s.events.Publish(ctx, models.Event{
		Type:        models.EventPayout,
		PerformerID: performerID,
		SubjectID:   w.ID,
		At:          w.CreatedAt,
	})
	return w, nil
}
