package models

import "time"

// Conversation statuses.
const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Conversation roles for captured identities.
const (
	RoleVenue     = "venue"
	RolePerformer = "musician"
)

// AccountName is a display identity captured when the conversation is created.
type AccountName struct {
	ParticipantID string `json:"participant_id"`
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	AccountImg    string `json:"account_img,omitempty"`
	Role          string `json:"role"`
}

// Conversation is the thread between a venue and one performer about one engagement.
type Conversation struct {
	ID                string        `json:"id"`
	EngagementID      string        `json:"engagement_id"`
	VenueID           string        `json:"venue_id"`
	PerformerID       string        `json:"performer_id"`
	Participants      []string      `json:"participants"`
	AccountNames      []AccountName `json:"account_names"`
	AuthorizedUserIDs []string      `json:"authorized_user_ids"`
	VenueName         string        `json:"venue_name,omitempty"`
	PerformerName     string        `json:"performer_name,omitempty"`
	Status            string        `json:"status"`
	LastMessage       string        `json:"last_message"`
	LastMessageAt     time.Time     `json:"last_message_at"`
	LastSenderID      string        `json:"last_sender_id"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Touch records msg as the conversation's last message summary.
func (c *Conversation) Touch(msg Message) {
	c.LastMessage = msg.Text
	c.LastMessageAt = msg.CreatedAt
	c.LastSenderID = msg.SenderID
}
