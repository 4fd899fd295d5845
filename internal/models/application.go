package models

import "time"

// Application statuses.
const (
	ApplicationPending           = "pending"
	ApplicationAccepted          = "accepted"
	ApplicationConfirmed         = "confirmed"
	ApplicationDeclined          = "declined"
	ApplicationPaymentProcessing = "payment processing"
	ApplicationPaid              = "paid"
	ApplicationInDispute         = "in dispute"
)

// Who sent a negotiation.
const (
	SentByPerformer = "musician"
	SentByVenue     = "venue"
)

// Application is one performer's bid for an engagement.
type Application struct {
	PerformerID   string    `json:"performer_id"`
	PerformerKind string    `json:"performer_kind"`
	Fee           int64     `json:"fee"`
	Status        string    `json:"status"`
	Invited       bool      `json:"invited"`
	Viewed        bool      `json:"viewed"`
	SentBy        string    `json:"sent_by,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Holds reports whether the status occupies the engagement's single booking slot.
func Holds(status string) bool {
	switch status {
	case ApplicationAccepted, ApplicationPaymentProcessing, ApplicationConfirmed, ApplicationPaid, ApplicationInDispute:
		return true
	}
	return false
}
