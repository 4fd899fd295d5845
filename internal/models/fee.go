package models

import "time"

// Fee entry statuses. An entry is in exactly one of them.
const (
	FeePending   = "pending"
	FeeCleared   = "cleared"
	FeeInDispute = "in dispute"
	FeeVoid      = "void"
)

// Fee is an append-only record of money owed to a performer for one engagement.
// Only Status and its bookkeeping fields change after creation.
type Fee struct {
	ID             string     `json:"id"`
	PerformerID    string     `json:"performer_id"`
	EngagementID   string     `json:"engagement_id"`
	VenueID        string     `json:"venue_id"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	ClearAt        time.Time  `json:"clear_at"`
	ClearTask      string     `json:"clear_task,omitempty"`
	DisputeReason  string     `json:"dispute_reason,omitempty"`
	VoidReason     string     `json:"void_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StatusChangeAt *time.Time `json:"status_change_at,omitempty"`
}

// Withdrawal is a payout of withdrawable earnings.
type Withdrawal struct {
	ID          string    `json:"id"`
	PerformerID string    `json:"performer_id"`
	Amount      int64     `json:"amount"`
	Destination string    `json:"destination"`
	PayoutRef   string    `json:"payout_ref"`
	CreatedAt   time.Time `json:"created_at"`
}
