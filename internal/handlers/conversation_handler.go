package handlers

import (
	"context"
	"net/http"
	"strconv"

	"gigBack/internal/models"
	"gigBack/internal/services"
)

type inbox interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
}

type ConversationHandler struct {
	Service *services.CorrespondenceService
	Threads inbox
	Log     Logger
}

type threadResponse struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
}

// Thread returns one venue-performer conversation. Only its authorized
// accounts may read it.
func (h *ConversationHandler) Thread(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, msgs, err := h.Service.Messages(r.Context(), q.Get(":id"), q.Get(":performer_id"))
	if err != nil {
		writeError(w, h.Log, "Thread", err)
		return
	}
	if !authorized(r.Context(), c) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, threadResponse{Conversation: c, Messages: msgs})
}

// Inbox lists the caller's conversations, most recent first.
func (h *ConversationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.Threads.ListForUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.Log, "Inbox", err)
		return
	}
	if list == nil {
		list = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func authorized(ctx context.Context, c models.Conversation) bool {
	if Role(ctx) == roleAdmin {
		return true
	}
	userID := UserID(ctx)
	for _, id := range c.AuthorizedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
