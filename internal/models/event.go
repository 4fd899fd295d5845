package models

import "time"

// Event types published after state changes.
const (
	EventApplied            = "engagement.applied"
	EventInvited            = "engagement.invited"
	EventNegotiated         = "engagement.negotiated"
	EventAccepted           = "engagement.accepted"
	EventDeclined           = "engagement.declined"
	EventPaymentStarted     = "engagement.payment_started"
	EventConfirmed          = "engagement.confirmed"
	EventOfferExpired       = "engagement.offer_expired"
	EventCancelled          = "engagement.cancelled"
	EventReopened           = "engagement.reopened"
	EventDeleted            = "engagement.deleted"
	EventFeeRecorded        = "fee.recorded"
	EventFeeCleared         = "fee.cleared"
	EventFeeVoided          = "fee.voided"
	EventPayout             = "fee.payout"
	EventDisputeOpened      = "dispute.opened"
	EventBandChanged        = "band.changed"
	EventConversationUpdate = "conversation.updated"
	EventReviewSubmitted    = "review.submitted"
)

// Event is the explicit change notification subscribers receive.
type Event struct {
	Type         string    `json:"type"`
	EngagementID string    `json:"engagement_id,omitempty"`
	PerformerID  string    `json:"performer_id,omitempty"`
	VenueID      string    `json:"venue_id,omitempty"`
	SubjectID    string    `json:"subject_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	At           time.Time `json:"at"`
}

// Saga step statuses.
const (
	StepPending = "pending"
	StepDone    = "done"
	StepFailed  = "failed"
)

// SagaStep is a unit of follow-up work that failed and awaits replay.
type SagaStep struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	EngagementID  string    `json:"engagement_id"`
	Payload       []byte    `json:"payload"`
	LastError     string    `json:"last_error"`
	Attempts      int       `json:"attempts"`
	Status        string    `json:"status"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	CreatedAt     time.Time `json:"created_at"`
}
