package models

import "time"

// FullSplitBP is 100% expressed in hundredths of a percent.
const FullSplitBP int64 = 10000

// Default band roles.
const (
	RoleBandLeader = "Band Leader"
	RoleBandMember = "Band Member"
)

// BandMember is one performer's seat in a band.
type BandMember struct {
	BandID      string    `json:"band_id"`
	PerformerID string    `json:"performer_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Image       string    `json:"image,omitempty"`
	Role        string    `json:"role"`
	IsAdmin     bool      `json:"is_admin"`
	SplitBP     int64     `json:"split_bp"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Split returns the member's share as a percentage.
func (m BandMember) Split() float64 {
	return float64(m.SplitBP) / 100
}

// RoleUpdate changes a member's role text and optionally its admin flag.
type RoleUpdate struct {
	Role    *string `json:"role,omitempty"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}

// Invite statuses.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
)

// BandInvite lets a performer join a band until it expires.
type BandInvite struct {
	ID           string    `json:"id"`
	BandID       string    `json:"band_id"`
	InvitedBy    string    `json:"invited_by"`
	InvitedEmail string    `json:"invited_email,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
