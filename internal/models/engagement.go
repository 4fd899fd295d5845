package models

import "time"

// Engagement statuses.
const (
	EngagementOpen   = "open"
	EngagementClosed = "closed"
)

// KindTicketed engagements close to new applicants as soon as an offer is accepted.
const KindTicketed = "Ticketed Gig"

// Fee statuses mirrored on the engagement for quick reads.
const (
	FeeStatusPending   = "pending"
	FeeStatusCleared   = "cleared"
	FeeStatusInDispute = "in dispute"
)

// Payment statuses.
const (
	PaymentProcessing = "processing"
	PaymentSucceeded  = "succeeded"
	PaymentFailed     = "failed"
)

// Engagement is a single booking opportunity posted by a venue.
type Engagement struct {
	ID                   string        `json:"id"`
	VenueID              string        `json:"venue_id"`
	Kind                 string        `json:"kind"`
	Budget               int64         `json:"budget"`
	StartAt              time.Time     `json:"start_at"`
	Applications         []Application `json:"applications"`
	AgreedFee            *int64        `json:"agreed_fee,omitempty"`
	Paid                 bool          `json:"paid"`
	Status               string        `json:"status"`
	BookedPerformerID    string        `json:"booked_performer_id,omitempty"`
	BookedAt             *time.Time    `json:"booked_at,omitempty"`
	CancellationReason   string        `json:"cancellation_reason,omitempty"`
	DisputeLogged        bool          `json:"dispute_logged"`
	DisputeClearingAt    *time.Time    `json:"dispute_clearing_at,omitempty"`
	FeeStatus            string        `json:"fee_status,omitempty"`
	ClearFeeTask         string        `json:"clear_fee_task,omitempty"`
	AutoMessageTask      string        `json:"auto_message_task,omitempty"`
	PaymentRef           string        `json:"payment_ref,omitempty"`
	PaymentStatus        string        `json:"payment_status,omitempty"`
	PayoutConfig         *PayoutConfig `json:"payout_config,omitempty"`
	VenueHasReviewed     bool          `json:"venue_has_reviewed"`
	PerformerHasReviewed bool          `json:"performer_has_reviewed"`
	Version              int64         `json:"version"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// PayoutConfig snapshots a band's member shares at booking time.
type PayoutConfig struct {
	PerformerID string        `json:"performer_id"`
	TotalFee    int64         `json:"total_fee"`
	Shares      []PayoutShare `json:"shares"`
}

// PayoutShare is one member's part of the agreed fee.
type PayoutShare struct {
	PerformerID string `json:"performer_id"`
	UserID      string `json:"user_id"`
	SplitBP     int64  `json:"split_bp"`
}

// Latest returns the authoritative application for the performer: the last
// element appended for them.
func (e *Engagement) Latest(performerID string) (*Application, int) {
	for i := len(e.Applications) - 1; i >= 0; i-- {
		if e.Applications[i].PerformerID == performerID {
			return &e.Applications[i], i
		}
	}
	return nil, -1
}

// HasApplied reports whether the performer has any application on the engagement.
func (e *Engagement) HasApplied(performerID string) bool {
	app, _ := e.Latest(performerID)
	return app != nil
}

// PerformerIDs lists each applicant once, in first-application order.
func (e *Engagement) PerformerIDs() []string {
	seen := make(map[string]struct{}, len(e.Applications))
	ids := make([]string, 0, len(e.Applications))
	for _, a := range e.Applications {
		if _, ok := seen[a.PerformerID]; ok {
			continue
		}
		seen[a.PerformerID] = struct{}{}
		ids = append(ids, a.PerformerID)
	}
	return ids
}

// Booked reports whether a performer currently holds the booking.
func (e *Engagement) Booked() bool {
	return e.BookedPerformerID != ""
}

// ClearBooking resets every field written by a booking so the engagement is
// indistinguishable from a never-booked one.
func (e *Engagement) ClearBooking() {
	e.AgreedFee = nil
	e.BookedPerformerID = ""
	e.BookedAt = nil
	e.PayoutConfig = nil
	e.DisputeClearingAt = nil
	e.DisputeLogged = false
	e.FeeStatus = ""
	e.PaymentStatus = ""
	e.PaymentRef = ""
	e.ClearFeeTask = ""
	e.AutoMessageTask = ""
	e.Paid = false
}
