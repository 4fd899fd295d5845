package handlers

import (
	"context"
	"net/http"
)

type tokenStore interface {
	Register(ctx context.Context, userID, token string) error
	Delete(ctx context.Context, userID, token string) error
}

// NotifyHandler manages the caller's push device tokens.
type NotifyHandler struct {
	Tokens tokenStore
	Log    Logger
}

func (h *NotifyHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	if err := h.Tokens.Register(r.Context(), userID, req.Token); err != nil {
		writeError(w, h.Log, "RegisterToken", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotifyHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.Tokens.Delete(r.Context(), userID, r.URL.Query().Get(":token")); err != nil {
		writeError(w, h.Log, "DeleteToken", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
