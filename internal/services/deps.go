package services

import (
	"context"
	"time"

	"gigBack/internal/models"
)

// Logger is the minimal logger every service needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Clock returns trusted time. Deadlines are always checked against it at call time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// EngagementRepository persists engagements. Update and Book compare the
// stored version and fail with models.ErrVersionConflict on mismatch.
type EngagementRepository interface {
	Create(ctx context.Context, e models.Engagement) (models.Engagement, error)
	Get(ctx context.Context, id string) (models.Engagement, error)
	GetByPaymentRef(ctx context.Context, ref string) (models.Engagement, error)
	Update(ctx context.Context, e models.Engagement) (models.Engagement, error)
	// Book is Update that additionally requires the stored booking marker to
	// be empty. It fails with models.ErrAlreadyBooked when another performer holds it.
	Book(ctx context.Context, e models.Engagement) (models.Engagement, error)
	Delete(ctx context.Context, id string) error
	ListAwaitingPayment(ctx context.Context, bookedBefore time.Time, limit int) ([]models.Engagement, error)
}

type VenueRepository interface {
	Get(ctx context.Context, id string) (models.Venue, error)
	AddGig(ctx context.Context, venueID, engagementID string) error
	RemoveGig(ctx context.Context, venueID, engagementID string) error
	AddReview(ctx context.Context, venueID string, positive bool) error
}

type PerformerRepository interface {
	Get(ctx context.Context, id string) (models.Performer, error)
	Create(ctx context.Context, p models.Performer) (models.Performer, error)
	AddApplication(ctx context.Context, performerID, engagementID string) error
	RemoveApplication(ctx context.Context, performerID, engagementID string) error
	// AdjustEarnings adds the deltas atomically and fails with
	// models.ErrInsufficientEarnings if withdrawable earnings would go negative.
	AdjustEarnings(ctx context.Context, performerID string, withdrawable, total int64) error
	SetPayoutDestination(ctx context.Context, performerID, destination string) error
	SetJoinPassword(ctx context.Context, performerID, hash string) error
	AddReview(ctx context.Context, performerID string, positive bool) error
	Delete(ctx context.Context, id string) error
}

// BandRepository stores the member set of a band. ReplaceMembers swaps the
// whole set in one transaction so splits are never observed half-written.
type BandRepository interface {
	Members(ctx context.Context, bandID string) ([]models.BandMember, error)
	ReplaceMembers(ctx context.Context, bandID string, members []models.BandMember) error
	CreateInvite(ctx context.Context, inv models.BandInvite) (models.BandInvite, error)
	GetInvite(ctx context.Context, id string) (models.BandInvite, error)
	MarkInviteAccepted(ctx context.Context, id string) error
	DeleteBand(ctx context.Context, bandID string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, c models.Conversation) (models.Conversation, error)
	Find(ctx context.Context, engagementID, performerID string) (models.Conversation, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Conversation, error)
	Save(ctx context.Context, c models.Conversation) error
	AddMessage(ctx context.Context, m models.Message) (models.Message, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	// SetMessageStatus moves messages of the given types whose status is in
	// from to the target status and returns how many changed.
	SetMessageStatus(ctx context.Context, conversationID string, types, from []string, to string) (int64, error)
}

type FeeRepository interface {
	Create(ctx context.Context, f models.Fee) (models.Fee, error)
	Get(ctx context.Context, id string) (models.Fee, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Fee, error)
	ListByPerformer(ctx context.Context, performerID string) ([]models.Fee, error)
	// UpdateStatus moves the fee from one status to another and fails with
	// models.ErrFeeNotPending when the stored status differs from from.
	UpdateStatus(ctx context.Context, id, from, to, reason string) error
	ListDue(ctx context.Context, before time.Time, limit int) ([]models.Fee, error)
	CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)
}

type DisputeRepository interface {
	Create(ctx context.Context, d models.Dispute) (models.Dispute, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Dispute, error)
}

type CancellationRepository interface {
	Create(ctx context.Context, c models.Cancellation) (models.Cancellation, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, r models.Review) (models.Review, error)
}

// SagaRepository keeps follow-up steps that failed and must be replayed.
type SagaRepository interface {
	Create(ctx context.Context, s models.SagaStep) (models.SagaStep, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.SagaStep, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string, next time.Time) error
}

// Locker serializes work on one key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Scheduler enqueues follow-up triggers and lets them be cancelled by id.
type Scheduler interface {
	Schedule(ctx context.Context, t models.Trigger) (string, error)
	Cancel(ctx context.Context, id string) error
}

// PaymentGateway is the payment collaborator.
type PaymentGateway interface {
	Charge(ctx context.Context, amount int64, destination string, metadata map[string]string) (string, error)
	Payout(ctx context.Context, amount int64, destination string) (string, error)
}

// Notifier is fire-and-forget; callers log failures and move on.
type Notifier interface {
	SendMessage(ctx context.Context, userID, title, body string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// IdentityResolver is consulted only when a conversation is created.
type IdentityResolver interface {
	Venue(ctx context.Context, venueID string) (models.Venue, error)
	Performer(ctx context.Context, performerID string) (models.Performer, []models.BandMember, error)
}

// Publisher receives explicit change events.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) {}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
