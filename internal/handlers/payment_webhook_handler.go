package handlers

import (
	"errors"
	"io"
	"net/http"

	"gigBack/internal/models"
	"gigBack/internal/pay"
	"gigBack/internal/services"
)

const maxWebhookBody = 64 << 10

// PaymentWebhookHandler receives settlement notifications from the processor.
type PaymentWebhookHandler struct {
	Engagements *services.EngagementService
	Secret      string
	Log         Logger
}

func (h *PaymentWebhookHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, err := pay.ParseSettlement(body, r.Header.Get(pay.SignatureHeader), h.Secret)
	switch {
	case errors.Is(err, pay.ErrBadSignature):
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	case err != nil:
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome := s.Outcome()
	if outcome == "" {
		h.Log.Infof("settlement %s: ignoring status %q", s.PaymentRef, s.Status)
		w.WriteHeader(http.StatusOK)
		return
	}
	err = h.Engagements.HandleSettlement(r.Context(), s.PaymentRef, outcome)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, models.ErrNotFound):
		// The engagement was deleted or the booking moved on; nothing to retry.
		h.Log.Infof("settlement %s: %v", s.PaymentRef, err)
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, h.Log, "Settlement", err)
	}
}
