package models

import "time"

// Trigger kinds.
const (
	TriggerClearFee    = "clear-fee"
	TriggerAutoMessage = "auto-message"
)

// Trigger is a follow-up scheduled for a booked engagement.
type Trigger struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	EngagementID string    `json:"engagement_id"`
	PerformerID  string    `json:"performer_id"`
	FeeID        string    `json:"fee_id,omitempty"`
	At           time.Time `json:"at"`
}
