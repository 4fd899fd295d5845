package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gigBack/internal/fsm"
	"gigBack/internal/models"
)

// EngagementService owns the per-engagement applicant state machine and the
// booking outcome.
type EngagementService struct {
	engagements    EngagementRepository
	venues         VenueRepository
	performers     PerformerRepository
	bands          BandRepository
	locker         Locker
	scheduler      Scheduler
	payments       PaymentGateway
	correspondence *CorrespondenceService
	fees           *FeeService
	events         Publisher
	journal        *Journal
	clock          Clock
	log            Logger
	cfg            Config
}

func engagementKey(id string) string { return "engagement:" + id }

// Get returns an engagement by id.
func (s *EngagementService) Get(ctx context.Context, id string) (models.Engagement, error) {
	return s.engagements.Get(ctx, id)
}

// PostEngagement stores a new open engagement and links it to its venue.
func (s *EngagementService) PostEngagement(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	if e.VenueID == "" {
		return e, models.Missing("venue_id")
	}
	if e.StartAt.IsZero() {
		return e, models.Missing("start_at")
	}
	if e.Budget < 0 {
		return e, models.ErrInvalidAmount
	}
	if _, err := s.venues.Get(ctx, e.VenueID); err != nil {
		return e, err
	}
	now := s.clock.Now()
	e.ID = uuid.NewString()
	e.Status = models.EngagementOpen
	e.Applications = []models.Application{}
	e.ClearBooking()
	e.Version = 0
	e.CreatedAt = now
	e.UpdatedAt = now

	created, err := s.engagements.Create(ctx, e)
	if err != nil {
		return e, err
	}
	if err := s.venues.AddGig(ctx, created.VenueID, created.ID); err != nil {
		s.log.Errorf("link engagement %s to venue %s: %v", created.ID, created.VenueID, err)
	}
	return created, nil
}

// DuplicateEngagement posts a copy of an engagement at a new start time with
// no applications or booking state.
func (s *EngagementService) DuplicateEngagement(ctx context.Context, id string, startAt time.Time) (models.Engagement, error) {
	src, err := s.engagements.Get(ctx, id)
	if err != nil {
		return models.Engagement{}, err
	}
	cp := models.Engagement{
		VenueID: src.VenueID,
		Kind:    src.Kind,
		Budget:  src.Budget,
		StartAt: startAt,
	}
	return s.PostEngagement(ctx, cp)
}

// Apply appends a pending application from the performer.
func (s *EngagementService) Apply(ctx context.Context, engagementID, performerID string, fee int64) (models.Engagement, error) {
	return s.addApplication(ctx, engagementID, performerID, fee, false)
}

// Invite appends a pending application on the venue's initiative, offering the budget.
func (s *EngagementService) Invite(ctx context.Context, engagementID, performerID string) (models.Engagement, error) {
	return s.addApplication(ctx, engagementID, performerID, -1, true)
}

func (s *EngagementService) addApplication(ctx context.Context, engagementID, performerID string, fee int64, invited bool) (models.Engagement, error) {
	if performerID == "" {
		return models.Engagement{}, models.Missing("performer_id")
	}
	if !invited && fee < 0 {
		return models.Engagement{}, models.ErrInvalidAmount
	}
	performer, err := s.performers.Get(ctx, performerID)
	if err != nil {
		return models.Engagement{}, err
	}

	var app models.Application
	e, err := s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		if e.Status != models.EngagementOpen || e.Booked() {
			return models.ErrEngagementClosed
		}
		if e.HasApplied(performerID) {
			return models.ErrDuplicateApplication
		}
		app = models.Application{
			PerformerID:   performerID,
			PerformerKind: performer.Kind,
			Fee:           fee,
			Status:        models.ApplicationPending,
			Invited:       invited,
			SentBy:        models.SentByPerformer,
			Timestamp:     s.clock.Now(),
		}
		if invited {
			app.Fee = e.Budget
			app.SentBy = models.SentByVenue
		}
		e.Applications = append(e.Applications, app)
		return nil
	})
	if err != nil {
		return e, err
	}

	if err := s.performers.AddApplication(ctx, performerID, e.ID); err != nil {
		s.journal.Record(ctx, stepLinkPerformer, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID}, err)
	}

	msgType, evType := models.MessageApplication, models.EventApplied
	var cerr error
	if invited {
		msgType, evType = models.MessageInvitation, models.EventInvited
		cerr = s.correspondence.OnInvite(ctx, e, app)
	} else {
		cerr = s.correspondence.OnApply(ctx, e, app)
	}
	if cerr != nil {
		s.journal.Record(ctx, stepOfferMessage, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID, MessageType: msgType}, cerr)
	}
	s.publish(ctx, evType, e, performerID, app.Status)
	return e, nil
}

// Negotiate appends a counter-offer. The new element becomes the performer's
// authoritative application.
func (s *EngagementService) Negotiate(ctx context.Context, engagementID, performerID string, newFee int64, sentBy string) (models.Engagement, error) {
	if newFee < 0 {
		return models.Engagement{}, models.ErrInvalidAmount
	}
	if sentBy != models.SentByVenue {
		sentBy = models.SentByPerformer
	}
	var app models.Application
	e, err := s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		if e.Status != models.EngagementOpen || e.Booked() {
			return models.ErrEngagementClosed
		}
		latest, _ := e.Latest(performerID)
		if latest == nil {
			return models.ErrApplicationNotFound
		}
		if models.Holds(latest.Status) {
			return models.ErrInvalidTransition
		}
		app = models.Application{
			PerformerID:   performerID,
			PerformerKind: latest.PerformerKind,
			Fee:           newFee,
			Status:        models.ApplicationPending,
			Invited:       latest.Invited,
			SentBy:        sentBy,
			Timestamp:     s.clock.Now(),
		}
		e.Applications = append(e.Applications, app)
		return nil
	})
	if err != nil {
		return e, err
	}
	if err := s.correspondence.OnNegotiate(ctx, e, app); err != nil {
		s.journal.Record(ctx, stepOfferMessage, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID, MessageType: models.MessageNegotiation}, err)
	}
	s.publish(ctx, models.EventNegotiated, e, performerID, app.Status)
	return e, nil
}

// AcceptOffer books the performer. A payable offer waits for payment in
// accepted; a non-payable one is confirmed at once. Every other application is
// declined and the sibling threads are closed before the call returns.
func (s *EngagementService) AcceptOffer(ctx context.Context, engagementID, performerID string, payable bool) (models.Engagement, error) {
	var shares *models.PayoutConfig
	e, err := s.mutate(ctx, engagementID, true, func(e *models.Engagement) error {
		if e.Booked() {
			return models.ErrAlreadyBooked
		}
		if e.Status != models.EngagementOpen {
			return models.ErrEngagementClosed
		}
		winner, _ := e.Latest(performerID)
		if winner == nil {
			return models.ErrApplicationNotFound
		}
		target := models.ApplicationConfirmed
		if payable {
			target = models.ApplicationAccepted
		}
		if err := fsm.Apply(winner, target); err != nil {
			return err
		}
		for i := range e.Applications {
			a := &e.Applications[i]
			if a.PerformerID == performerID || a.Status == models.ApplicationDeclined {
				continue
			}
			a.Status = models.ApplicationDeclined
		}
		fee := winner.Fee
		bookedAt := s.clock.Now()
		e.AgreedFee = &fee
		e.BookedPerformerID = performerID
		e.BookedAt = &bookedAt
		if !payable || e.Kind == models.KindTicketed {
			e.Status = models.EngagementClosed
		}
		if winner.PerformerKind == models.PerformerBand {
			if shares == nil {
				cfg, err := s.payoutConfig(ctx, performerID, fee)
				if err != nil {
					return err
				}
				shares = cfg
			}
			e.PayoutConfig = shares
		}
		return nil
	})
	if err != nil {
		return e, err
	}

	if err := s.correspondence.OnAccept(ctx, e, performerID, payable); err != nil {
		s.log.Errorf("accept fan-out for engagement %s: %v", e.ID, err)
	}
	if !payable {
		s.scheduleReviewPrompt(ctx, &e, performerID)
	}
	s.publish(ctx, models.EventAccepted, e, performerID, statusOf(e, performerID))
	return e, nil
}

func (s *EngagementService) payoutConfig(ctx context.Context, bandID string, fee int64) (*models.PayoutConfig, error) {
	members, err := s.bands.Members(ctx, bandID)
	if err != nil {
		return nil, err
	}
	cfg := &models.PayoutConfig{PerformerID: bandID, TotalFee: fee}
	for _, m := range members {
		cfg.Shares = append(cfg.Shares, models.PayoutShare{PerformerID: m.PerformerID, UserID: m.UserID, SplitBP: m.SplitBP})
	}
	return cfg, nil
}

// StartPayment charges the agreed fee and parks the booking in payment processing.
// Charge failures are returned to the caller.
func (s *EngagementService) StartPayment(ctx context.Context, engagementID, performerID, paymentMethod string) (models.Engagement, error) {
	if paymentMethod == "" {
		return models.Engagement{}, models.Missing("payment_method")
	}
	unlock, err := s.locker.Lock(ctx, engagementKey(engagementID))
	if err != nil {
		return models.Engagement{}, models.External("lock engagement", err)
	}
	defer unlock()

	e, err := s.engagements.Get(ctx, engagementID)
	if err != nil {
		return e, err
	}
	if e.BookedPerformerID != performerID {
		return e, models.ErrNotBooked
	}
	app, _ := e.Latest(performerID)
	if app == nil {
		return e, models.ErrApplicationNotFound
	}
	if app.Status == models.ApplicationPaymentProcessing {
		return e, nil
	}
	if !fsm.CanTransition(app.Status, models.ApplicationPaymentProcessing) || e.AgreedFee == nil {
		return e, models.ErrInvalidTransition
	}

	ref, err := s.payments.Charge(ctx, *e.AgreedFee, paymentMethod, map[string]string{
		"engagement_id": e.ID,
		"performer_id":  performerID,
		"venue_id":      e.VenueID,
	})
	if err != nil {
		return e, models.External("charge", err)
	}

	_ = fsm.Apply(app, models.ApplicationPaymentProcessing)
	e.PaymentRef = ref
	e.PaymentStatus = models.PaymentProcessing
	e.UpdatedAt = s.clock.Now()
	saved, err := s.engagements.Update(ctx, e)
	if err != nil {
		s.log.Errorf("charge %s succeeded but engagement %s was not updated: %v", ref, e.ID, err)
		return e, err
	}
	s.publish(ctx, models.EventPaymentStarted, saved, performerID, models.ApplicationPaymentProcessing)
	return saved, nil
}

// HandleSettlement applies a settlement notification from the payment collaborator.
func (s *EngagementService) HandleSettlement(ctx context.Context, paymentRef, outcome string) error {
	e, err := s.engagements.GetByPaymentRef(ctx, paymentRef)
	if err != nil {
		return err
	}
	switch outcome {
	case models.PaymentSucceeded:
		_, err = s.ConfirmPayment(ctx, e.ID, e.BookedPerformerID)
	case models.PaymentFailed:
		_, err = s.revertOffer(ctx, e.ID, e.BookedPerformerID, true)
	default:
		return models.Missing("outcome")
	}
	return err
}

// ConfirmPayment moves the booked application to confirmed after settlement,
// records the pending fee and schedules the follow-ups. Repeated calls are no-ops.
func (s *EngagementService) ConfirmPayment(ctx context.Context, engagementID, performerID string) (models.Engagement, error) {
	already := false
	e, err := s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		if e.BookedPerformerID != performerID {
			return models.ErrNotBooked
		}
		app, _ := e.Latest(performerID)
		if app == nil {
			return models.ErrApplicationNotFound
		}
		if app.Status == models.ApplicationConfirmed {
			if !e.Paid {
				// confirmed without payment: a non-payable booking
				return models.ErrInvalidTransition
			}
			already = true
			return errUnchanged
		}
		if err := fsm.Apply(app, models.ApplicationConfirmed); err != nil {
			return err
		}
		clearAt := e.StartAt.Add(s.cfg.DisputeWindow)
		e.Paid = true
		e.Status = models.EngagementClosed
		e.PaymentStatus = models.PaymentSucceeded
		e.FeeStatus = models.FeeStatusPending
		e.DisputeLogged = false
		e.DisputeClearingAt = &clearAt
		return nil
	})
	if err != nil {
		return e, err
	}

	fee, err := s.fees.ensurePendingFee(ctx, e, performerID)
	if err != nil {
		return e, err
	}
	if !already {
		e.ClearFeeTask = fee.ClearTask
		s.scheduleReviewPrompt(ctx, &e, performerID)
		if err := s.correspondence.OnPaid(ctx, e, performerID); err != nil {
			s.journal.Record(ctx, stepPaidMessage, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID}, err)
		}
		s.publish(ctx, models.EventConfirmed, e, performerID, models.ApplicationConfirmed)
	}
	return e, nil
}

// scheduleReviewPrompt enqueues the post-gig message and stores the task refs.
func (s *EngagementService) scheduleReviewPrompt(ctx context.Context, e *models.Engagement, performerID string) {
	id, err := s.scheduler.Schedule(ctx, models.Trigger{
		ID:           uuid.NewString(),
		Kind:         models.TriggerAutoMessage,
		EngagementID: e.ID,
		PerformerID:  performerID,
		At:           e.StartAt.Add(s.cfg.AutoMessageDelay),
	})
	if err != nil {
		s.log.Errorf("schedule review prompt for engagement %s: %v", e.ID, err)
		return
	}
	clearTask := e.ClearFeeTask
	saved, err := s.mutate(ctx, e.ID, false, func(cur *models.Engagement) error {
		if cur.BookedPerformerID != performerID {
			return models.ErrNotBooked
		}
		cur.AutoMessageTask = id
		if clearTask != "" {
			cur.ClearFeeTask = clearTask
		}
		return nil
	})
	if err != nil {
		s.log.Errorf("store trigger refs for engagement %s: %v", e.ID, err)
		return
	}
	*e = saved
}

// ExpireOffer reverts an accepted offer whose payment never settled. The
// engagement becomes bookable again and the other applicants are re-pended.
func (s *EngagementService) ExpireOffer(ctx context.Context, engagementID, performerID string) (models.Engagement, error) {
	return s.revertOffer(ctx, engagementID, performerID, false)
}

func (s *EngagementService) revertOffer(ctx context.Context, engagementID, performerID string, paymentFailed bool) (models.Engagement, error) {
	e, err := s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		if e.BookedPerformerID != performerID {
			return models.ErrNotBooked
		}
		app, _ := e.Latest(performerID)
		if app == nil {
			return models.ErrApplicationNotFound
		}
		if app.Status != models.ApplicationAccepted && app.Status != models.ApplicationPaymentProcessing {
			return models.ErrInvalidTransition
		}
		_ = fsm.Apply(app, models.ApplicationDeclined)
		repend(e, performerID)
		e.ClearBooking()
		e.Status = models.EngagementOpen
		if paymentFailed {
			e.PaymentStatus = models.PaymentFailed
		}
		return nil
	})
	if err != nil {
		return e, err
	}

	if paymentFailed {
		if err := s.correspondence.OnPaymentFailed(ctx, e, performerID); err != nil {
			s.log.Errorf("payment failure notice for engagement %s: %v", e.ID, err)
		}
	} else if err := s.correspondence.OnCancelled(ctx, e, performerID, models.CancelledByVenue); err != nil {
		s.journal.Record(ctx, stepCancelConversation, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: performerID, Party: models.CancelledByVenue}, err)
	}
	if err := s.correspondence.OnReopen(ctx, e, performerID); err != nil {
		s.log.Errorf("reopen fan-out for engagement %s: %v", e.ID, err)
	}
	s.publish(ctx, models.EventOfferExpired, e, performerID, models.ApplicationDeclined)
	return e, nil
}

// ExpireStaleOffers expires accepted and payment-processing offers booked
// before now minus the offer TTL.
func (s *EngagementService) ExpireStaleOffers(ctx context.Context, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.OfferTTL)
	list, err := s.engagements.ListAwaitingPayment(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range list {
		if _, err := s.ExpireOffer(ctx, e.ID, e.BookedPerformerID); err != nil {
			s.log.Errorf("expire offer on engagement %s: %v", e.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

// DeclineApplication declines the performer's latest application. Declining
// twice is a no-op. Declining the accepted winner releases the booking: the
// others go back to pending and their threads reopen. A winner whose charge
// is in flight cannot be declined.
func (s *EngagementService) DeclineApplication(ctx context.Context, engagementID, performerID string) (models.Engagement, error) {
	released := false
	e, err := s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		released = false
		app, _ := e.Latest(performerID)
		if app == nil {
			return models.ErrApplicationNotFound
		}
		if app.Status == models.ApplicationDeclined {
			return errUnchanged
		}
		if app.Status == models.ApplicationPaymentProcessing {
			return models.ErrInvalidTransition
		}
		if err := fsm.Apply(app, models.ApplicationDeclined); err != nil {
			return err
		}
		if e.BookedPerformerID == performerID {
			repend(e, performerID)
			e.ClearBooking()
			e.Status = models.EngagementOpen
			released = true
		}
		return nil
	})
	if err != nil {
		return e, err
	}
	if err := s.correspondence.OnDecline(ctx, e, performerID); err != nil {
		s.log.Errorf("decline message for engagement %s: %v", e.ID, err)
	}
	if released {
		if err := s.correspondence.OnReopen(ctx, e, performerID); err != nil {
			s.log.Errorf("reopen fan-out for engagement %s: %v", e.ID, err)
		}
	}
	s.publish(ctx, models.EventDeclined, e, performerID, models.ApplicationDeclined)
	return e, nil
}

// markFeeCleared moves the booked application from confirmed to paid once its
// fee has been credited. It is a no-op when the application is already paid.
func (s *EngagementService) markFeeCleared(ctx context.Context, engagementID, performerID string) (models.Engagement, error) {
	return s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		if e.BookedPerformerID != performerID {
			return models.ErrNotBooked
		}
		app, _ := e.Latest(performerID)
		if app == nil {
			return models.ErrApplicationNotFound
		}
		if app.Status == models.ApplicationPaid {
			if e.FeeStatus == models.FeeStatusCleared {
				return errUnchanged
			}
		} else if err := fsm.Apply(app, models.ApplicationPaid); err != nil {
			return err
		}
		e.FeeStatus = models.FeeStatusCleared
		return nil
	})
}

// MarkViewed flags every application as seen by the venue.
func (s *EngagementService) MarkViewed(ctx context.Context, engagementID string) (models.Engagement, error) {
	return s.mutate(ctx, engagementID, false, func(e *models.Engagement) error {
		changed := false
		for i := range e.Applications {
			if !e.Applications[i].Viewed {
				e.Applications[i].Viewed = true
				changed = true
			}
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
}

// errUnchanged aborts a mutation without writing and without failing the caller.
var errUnchanged = errors.New("unchanged")

// mutate serializes fn on the engagement behind the per-engagement lock and
// writes the result with a version compare-and-set, retrying on conflict.
// With book set, the write also requires the booking marker to be free.
func (s *EngagementService) mutate(ctx context.Context, id string, book bool, fn func(e *models.Engagement) error) (models.Engagement, error) {
	if strings.TrimSpace(id) == "" {
		return models.Engagement{}, models.Missing("engagement_id")
	}
	unlock, err := s.locker.Lock(ctx, engagementKey(id))
	if err != nil {
		return models.Engagement{}, models.External("lock engagement", err)
	}
	defer unlock()

	var last error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		e, err := s.engagements.Get(ctx, id)
		if err != nil {
			return e, err
		}
		if err := fn(&e); err != nil {
			if errors.Is(err, errUnchanged) {
				return e, nil
			}
			return e, err
		}
		e.UpdatedAt = s.clock.Now()
		var saved models.Engagement
		if book {
			saved, err = s.engagements.Book(ctx, e)
		} else {
			saved, err = s.engagements.Update(ctx, e)
		}
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return e, err
		}
		last = err
	}
	return models.Engagement{}, last
}

// repend resets every other performer's latest application to pending.
func repend(e *models.Engagement, except string) {
	for _, pid := range e.PerformerIDs() {
		if pid == except {
			continue
		}
		app, _ := e.Latest(pid)
		app.Status = models.ApplicationPending
	}
}

func statusOf(e models.Engagement, performerID string) string {
	if app, _ := e.Latest(performerID); app != nil {
		return app.Status
	}
	return ""
}

func (s *EngagementService) publish(ctx context.Context, typ string, e models.Engagement, performerID, status string) {
	s.events.Publish(ctx, models.Event{
		Type:         typ,
		EngagementID: e.ID,
		PerformerID:  performerID,
		VenueID:      e.VenueID,
		Status:       status,
		At:           s.clock.Now(),
	})
}
