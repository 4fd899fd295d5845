package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gigBack/internal/models"
)

// Logger is what handlers log failures through.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusFor maps an error kind to the HTTP status the client sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrWindowExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrExternalFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown to people for the outcomes they can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrAlreadyBooked):
		return "this gig was just booked"
	case errors.Is(err, models.ErrWindowExpired):
		return "the dispute period has closed"
	}
	var coded *models.Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	if errors.Is(err, models.ErrExternalFailure) {
		return "temporarily unavailable, try again"
	}
	return "internal error"
}

func writeError(w http.ResponseWriter, log Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Errorf("%s: %v", op, err)
	}
	body := errorBody{Error: userMessage(err), Retryable: models.IsRetryable(err)}
	var coded *models.Error
	if errors.As(err, &coded) {
		body.Code = coded.Code
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
