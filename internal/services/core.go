package services

import (
	"context"
	"errors"
	"fmt"

	"gigBack/internal/models"
)

// Journaled step kinds.
const (
	stepWinnerAccepted     = "conversation.accept-winner"
	stepCloseSibling       = "conversation.close-sibling"
	stepAcceptFanout       = "conversation.accept-fanout"
	stepReopenFanout       = "conversation.reopen-fanout"
	stepDeleteFanout       = "conversation.delete-fanout"
	stepReopenConversation = "conversation.reopen"
	stepCancelConversation = "conversation.cancelled"
	stepDeleteConversation = "conversation.delete"
	stepOfferMessage       = "conversation.offer"
	stepPaidMessage        = "conversation.paid"
	stepLinkPerformer      = "performer.link-gig"
	stepUnlinkPerformer    = "performer.unlink-gig"
	stepUnlinkVenue        = "venue.unlink-gig"
	stepVoidFees           = "fee.void"
	stepCreditFee          = "fee.credit"
	stepFeeSettled         = "engagement.fee-cleared"
	stepCancelTrigger      = "trigger.cancel"
)

type sagaPayload struct {
	EngagementID string `json:"engagement_id,omitempty"`
	PerformerID  string `json:"performer_id,omitempty"`
	VenueID      string `json:"venue_id,omitempty"`
	FeeID        string `json:"fee_id,omitempty"`
	TriggerID    string `json:"trigger_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	MessageType  string `json:"message_type,omitempty"`
	Party        string `json:"party,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Payable      bool   `json:"payable,omitempty"`
	TotalOnly    bool   `json:"total_only,omitempty"`
}

// Deps groups everything the booking core needs.
type Deps struct {
	Engagements   EngagementRepository
	Venues        VenueRepository
	Performers    PerformerRepository
	Bands         BandRepository
	Conversations ConversationRepository
	Fees          FeeRepository
	Disputes      DisputeRepository
	Cancellations CancellationRepository
	Reviews       ReviewRepository
	Saga          SagaRepository
	Locker        Locker
	Scheduler     Scheduler
	Payments      PaymentGateway
	Notifier      Notifier
	Identity      IdentityResolver
	Events        Publisher
	Clock         Clock
	Logger        Logger
	Config        Config
}

// Validate ensures required dependencies are provided and fills optional ones.
func (d *Deps) Validate() error {
	switch {
	case d.Engagements == nil:
		return errors.New("booking deps: Engagements is required")
	case d.Venues == nil:
		return errors.New("booking deps: Venues is required")
	case d.Performers == nil:
		return errors.New("booking deps: Performers is required")
	case d.Bands == nil:
		return errors.New("booking deps: Bands is required")
	case d.Conversations == nil:
		return errors.New("booking deps: Conversations is required")
	case d.Fees == nil:
		return errors.New("booking deps: Fees is required")
	case d.Disputes == nil:
		return errors.New("booking deps: Disputes is required")
	case d.Cancellations == nil:
		return errors.New("booking deps: Cancellations is required")
	case d.Reviews == nil:
		return errors.New("booking deps: Reviews is required")
	case d.Saga == nil:
		return errors.New("booking deps: Saga is required")
	case d.Locker == nil:
		return errors.New("booking deps: Locker is required")
	case d.Scheduler == nil:
		return errors.New("booking deps: Scheduler is required")
	case d.Payments == nil:
		return errors.New("booking deps: Payments is required")
	case d.Identity == nil:
		return errors.New("booking deps: Identity is required")
	}
	if d.Logger == nil {
		d.Logger = nopLogger{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	d.Config.applyDefaults()
	return nil
}

// Core bundles the booking services built over one set of dependencies.
type Core struct {
	Engagements    *EngagementService
	Correspondence *CorrespondenceService
	Bands          *BandService
	Cancellations  *CancellationService
	Fees           *FeeService
	Disputes       *DisputeService
	Reviews        *ReviewService
	Journal        *Journal
}

// NewCore validates deps, wires the services and registers replay handlers.
func NewCore(d Deps) (*Core, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	journal := NewJournal(d.Saga, d.Clock, d.Logger, d.Config.SagaBackoff)

	corr := &CorrespondenceService{
		conversations: d.Conversations,
		identity:      d.Identity,
		notifier:      d.Notifier,
		events:        d.Events,
		journal:       journal,
		clock:         d.Clock,
		log:           d.Logger,
	}
	fees := &FeeService{
		fees:        d.Fees,
		engagements: d.Engagements,
		performers:  d.Performers,
		scheduler:   d.Scheduler,
		payments:    d.Payments,
		events:      d.Events,
		journal:     journal,
		clock:       d.Clock,
		log:         d.Logger,
	}
	bands := &BandService{
		bands:      d.Bands,
		performers: d.Performers,
		locker:     d.Locker,
		events:     d.Events,
		clock:      d.Clock,
		log:        d.Logger,
		cfg:        d.Config,
	}
	eng := &EngagementService{
		engagements:    d.Engagements,
		venues:         d.Venues,
		performers:     d.Performers,
		bands:          d.Bands,
		locker:         d.Locker,
		scheduler:      d.Scheduler,
		payments:       d.Payments,
		correspondence: corr,
		fees:           fees,
		events:         d.Events,
		journal:        journal,
		clock:          d.Clock,
		log:            d.Logger,
		cfg:            d.Config,
	}
	fees.bookings = eng
	cancels := &CancellationService{
		engagements:    d.Engagements,
		venues:         d.Venues,
		performers:     d.Performers,
		cancellations:  d.Cancellations,
		locker:         d.Locker,
		scheduler:      d.Scheduler,
		correspondence: corr,
		fees:           fees,
		notifier:       d.Notifier,
		identity:       d.Identity,
		events:         d.Events,
		journal:        journal,
		clock:          d.Clock,
		log:            d.Logger,
		cfg:            d.Config,
	}
	disputes := &DisputeService{
		engagements:    d.Engagements,
		disputes:       d.Disputes,
		fees:           d.Fees,
		locker:         d.Locker,
		scheduler:      d.Scheduler,
		correspondence: corr,
		notifier:       d.Notifier,
		identity:       d.Identity,
		events:         d.Events,
		clock:          d.Clock,
		log:            d.Logger,
		cfg:            d.Config,
	}
	reviews := &ReviewService{
		engagements: d.Engagements,
		venues:      d.Venues,
		performers:  d.Performers,
		reviews:     d.Reviews,
		locker:      d.Locker,
		events:      d.Events,
		clock:       d.Clock,
		cfg:         d.Config,
	}

	core := &Core{
		Engagements:    eng,
		Correspondence: corr,
		Bands:          bands,
		Cancellations:  cancels,
		Fees:           fees,
		Disputes:       disputes,
		Reviews:        reviews,
		Journal:        journal,
	}
	core.registerSteps(d)
	return core, nil
}

func (c *Core) registerSteps(d Deps) {
	withEngagement := func(fn func(ctx context.Context, e models.Engagement, p sagaPayload) error) StepHandler {
		return func(ctx context.Context, payload []byte) error {
			var p sagaPayload
			if err := decodeStep(payload, &p); err != nil {
				return err
			}
			e, err := d.Engagements.Get(ctx, p.EngagementID)
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return fn(ctx, e, p)
		}
	}
	plain := func(fn func(ctx context.Context, p sagaPayload) error) StepHandler {
		return func(ctx context.Context, payload []byte) error {
			var p sagaPayload
			if err := decodeStep(payload, &p); err != nil {
				return err
			}
			return fn(ctx, p)
		}
	}
	corr := c.Correspondence

	c.Journal.Register(stepWinnerAccepted, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		if e.BookedPerformerID != p.PerformerID {
			return nil
		}
		return corr.acceptWinner(ctx, e, p.PerformerID, p.Payable)
	}))
	c.Journal.Register(stepCloseSibling, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		if !e.Booked() || e.BookedPerformerID == p.PerformerID {
			return nil
		}
		conv, err := d.Conversations.Find(ctx, e.ID, p.PerformerID)
		if err != nil {
			return err
		}
		if conv.Status == models.ConversationClosed {
			return nil
		}
		return corr.closeSibling(ctx, conv)
	}))
	c.Journal.Register(stepReopenConversation, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		if e.Booked() || e.Status != models.EngagementOpen {
			return nil
		}
		conv, err := d.Conversations.Find(ctx, e.ID, p.PerformerID)
		if err != nil {
			return err
		}
		return corr.reopen(ctx, conv)
	}))
	c.Journal.Register(stepAcceptFanout, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		if e.BookedPerformerID != p.PerformerID {
			return nil
		}
		return corr.closeSiblings(ctx, e, p.PerformerID)
	}))
	c.Journal.Register(stepReopenFanout, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		if e.Booked() || e.Status != models.EngagementOpen {
			return nil
		}
		return corr.reopenAll(ctx, e, p.PerformerID)
	}))
	c.Journal.Register(stepDeleteFanout, plain(func(ctx context.Context, p sagaPayload) error {
		return corr.closeAllDeleted(ctx, p.EngagementID)
	}))
	c.Journal.Register(stepCancelConversation, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		return corr.OnCancelled(ctx, e, p.PerformerID, p.Party)
	}))
	c.Journal.Register(stepDeleteConversation, plain(func(ctx context.Context, p sagaPayload) error {
		conv, err := d.Conversations.Find(ctx, p.EngagementID, p.PerformerID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return corr.closeDeleted(ctx, conv)
	}))
	c.Journal.Register(stepOfferMessage, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		app, _ := e.Latest(p.PerformerID)
		if app == nil {
			return nil
		}
		switch p.MessageType {
		case models.MessageInvitation:
			return corr.OnInvite(ctx, e, *app)
		case models.MessageNegotiation:
			return corr.OnNegotiate(ctx, e, *app)
		default:
			return corr.OnApply(ctx, e, *app)
		}
	}))
	c.Journal.Register(stepPaidMessage, withEngagement(func(ctx context.Context, e models.Engagement, p sagaPayload) error {
		return corr.OnPaid(ctx, e, p.PerformerID)
	}))
	c.Journal.Register(stepLinkPerformer, plain(func(ctx context.Context, p sagaPayload) error {
		return d.Performers.AddApplication(ctx, p.PerformerID, p.EngagementID)
	}))
	c.Journal.Register(stepUnlinkPerformer, plain(func(ctx context.Context, p sagaPayload) error {
		return ignoreNotFound(d.Performers.RemoveApplication(ctx, p.PerformerID, p.EngagementID))
	}))
	c.Journal.Register(stepUnlinkVenue, plain(func(ctx context.Context, p sagaPayload) error {
		return ignoreNotFound(d.Venues.RemoveGig(ctx, p.VenueID, p.EngagementID))
	}))
	c.Journal.Register(stepVoidFees, plain(func(ctx context.Context, p sagaPayload) error {
		return c.Fees.VoidPendingFees(ctx, p.EngagementID, p.Reason)
	}))
	c.Journal.Register(stepCreditFee, plain(func(ctx context.Context, p sagaPayload) error {
		credit := feeCredit{PerformerID: p.PerformerID, Amount: p.Amount, TotalOnly: p.TotalOnly}
		return d.Performers.AdjustEarnings(ctx, credit.PerformerID, credit.withdrawable(), credit.Amount)
	}))
	c.Journal.Register(stepFeeSettled, plain(func(ctx context.Context, p sagaPayload) error {
		_, err := c.Engagements.markFeeCleared(ctx, p.EngagementID, p.PerformerID)
		if isSettled(err) {
			return nil
		}
		return err
	}))
	c.Journal.Register(stepCancelTrigger, plain(func(ctx context.Context, p sagaPayload) error {
		return ignoreNotFound(d.Scheduler.Cancel(ctx, p.TriggerID))
	}))
}

// HandleTrigger executes a due follow-up trigger.
func (c *Core) HandleTrigger(ctx context.Context, t models.Trigger) error {
	switch t.Kind {
	case models.TriggerClearFee:
		return c.Fees.ClearFee(ctx, t.PerformerID, t.FeeID)
	case models.TriggerAutoMessage:
		e, err := c.Engagements.Get(ctx, t.EngagementID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.BookedPerformerID != t.PerformerID || e.DisputeLogged {
			return nil
		}
		return c.Correspondence.OnReviewDue(ctx, e, t.PerformerID)
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

type nopNotifier struct{}

func (nopNotifier) SendMessage(context.Context, string, string, string) error { return nil }
func (nopNotifier) SendEmail(context.Context, string, string, string) error   { return nil }
