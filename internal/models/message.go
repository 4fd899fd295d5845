package models

import "time"

// Message types.
const (
	MessageApplication  = "application"
	MessageInvitation   = "invitation"
	MessageNegotiation  = "negotiation"
	MessageAnnouncement = "announcement"
	MessageReview       = "review"
	MessageText         = "text"
	MessageDispute      = "dispute"
)

// Message statuses beyond the application statuses they mirror.
const (
	MessageAppsClosed      = "apps-closed"
	MessageGigConfirmed    = "gig confirmed"
	MessageGigBooked       = "gig booked"
	MessageReopened        = "reopened"
	MessageAwaitingPayment = "awaiting payment"
	MessagePaymentFailed   = "payment failed"
	MessageCancelled       = "cancelled"
	MessageDisputeLogged   = "dispute logged"
	MessageOpen            = "open"
)

// SystemSender is the sender id of generated announcements.
const SystemSender = "system"

// Message is one entry of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"`
	Status         string    `json:"status,omitempty"`
	Text           string    `json:"text"`
	Fee            int64     `json:"fee,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsOffer reports whether the message mirrors an application event.
func (m Message) IsOffer() bool {
	switch m.Type {
	case MessageApplication, MessageInvitation, MessageNegotiation:
		return true
	}
	return false
}
