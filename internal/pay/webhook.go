package pay

import (
	"encoding/json"
	"errors"
	"strings"

	"gigBack/internal/models"
)

// ErrBadSignature is returned when a settlement body fails verification.
var ErrBadSignature = errors.New("pay: invalid webhook signature")

// Settlement is the processor's notification about a charge.
type Settlement struct {
	PaymentRef string `json:"payment_ref"`
	Status     string `json:"status"`
}

// Outcome maps processor statuses onto the booking payment statuses.
func (s Settlement) Outcome() string {
	switch strings.ToLower(s.Status) {
	case "succeeded", "success", "paid":
		return models.PaymentSucceeded
	case "failed", "declined", "error":
		return models.PaymentFailed
	}
	return ""
}

// ParseSettlement verifies and decodes a webhook body.
func ParseSettlement(body []byte, signature, secret string) (Settlement, error) {
	if !VerifyHMAC(body, signature, secret) {
		return Settlement{}, ErrBadSignature
	}
	var s Settlement
	if err := json.Unmarshal(body, &s); err != nil {
		return Settlement{}, err
	}
	if s.PaymentRef == "" {
		return Settlement{}, models.Missing("payment_ref")
	}
	return s, nil
}
