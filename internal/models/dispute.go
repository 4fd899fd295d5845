package models

import "time"

// DisputeOpen is the only status the core writes; resolution happens offline.
const DisputeOpen = "open"

// Dispute is a venue-initiated claim freezing a pending fee.
type Dispute struct {
	ID           string    `json:"id"`
	EngagementID string    `json:"engagement_id"`
	PerformerID  string    `json:"performer_id"`
	VenueID      string    `json:"venue_id"`
	Reason       string    `json:"reason"`
	Detail       string    `json:"detail,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Cancelling parties.
const (
	CancelledByPerformer = "musician"
	CancelledByVenue     = "venue"
)

// Cancellation logs who backed out of a booking and why.
type Cancellation struct {
	ID              string    `json:"id"`
	EngagementID    string    `json:"engagement_id"`
	PerformerID     string    `json:"performer_id"`
	VenueID         string    `json:"venue_id"`
	Reason          string    `json:"reason"`
	CancellingParty string    `json:"cancelling_party"`
	CreatedAt       time.Time `json:"created_at"`
}

// Review ratings.
const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

// Review is written by one side about the other after an engagement.
type Review struct {
	ID           string    `json:"id"`
	EngagementID string    `json:"engagement_id"`
	PerformerID  string    `json:"performer_id"`
	VenueID      string    `json:"venue_id"`
	WrittenBy    string    `json:"written_by"`
	Rating       string    `json:"rating"`
	Text         string    `json:"text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
