package models

import "time"

// Performer kinds.
const (
	PerformerSolo = "solo"
	PerformerBand = "band"
)

// Performer is a solo musician or a band. Both share the fee bookkeeping shape.
type Performer struct {
	ID                   string    `json:"id"`
	Kind                 string    `json:"kind"`
	Name                 string    `json:"name"`
	Image                string    `json:"image,omitempty"`
	UserID               string    `json:"user_id"`
	Email                string    `json:"email,omitempty"`
	GigApplications      []string  `json:"gig_applications"`
	WithdrawableEarnings int64     `json:"withdrawable_earnings"`
	TotalEarnings        int64     `json:"total_earnings"`
	PayoutDestination    string    `json:"payout_destination,omitempty"`
	JoinPasswordHash     string    `json:"-"`
	ReviewsTotal         int       `json:"reviews_total"`
	ReviewsPositive      int       `json:"reviews_positive"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
}

// Venue owns engagements and a list of the ones it has posted.
type Venue struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Image           string        `json:"image,omitempty"`
	OwnerID         string        `json:"owner_id"`
	Email           string        `json:"email,omitempty"`
	GigIDs          []string      `json:"gig_ids"`
	Members         []VenueMember `json:"members,omitempty"`
	ReviewsTotal    int           `json:"reviews_total"`
	ReviewsPositive int           `json:"reviews_positive"`
}

// VenueMember is a staff account that speaks for the venue.
type VenueMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
	Status string `json:"status"`
}

// VenueMemberActive marks members that can act for the venue.
const VenueMemberActive = "active"
