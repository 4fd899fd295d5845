package handlers

import (
	"context"
	"net/http"

	"gigBack/internal/models"
	"gigBack/internal/services"
)

type cancellationLog interface {
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Cancellation, error)
}

type CancellationHandler struct {
	Service *services.CancellationService
	Access  *Access
	Log     Logger
	History cancellationLog
}

type cancelRequest struct {
	PerformerID string `json:"performer_id"`
	Reason      string `json:"reason"`
	Party       string `json:"party"`
}

// Cancel backs a booked performer out. The party decides whether the
// engagement reopens.
func (h *CancellationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.URL.Query().Get(":id")
	var (
		e   models.Engagement
		err error
	)
	switch req.Party {
	case models.CancelledByPerformer:
		if err = h.Access.Performer(r.Context(), req.PerformerID); err == nil {
			e, err = h.Service.CancelByPerformer(r.Context(), id, req.PerformerID, req.Reason)
		}
	case models.CancelledByVenue:
		if _, err = h.Access.EngagementVenue(r.Context(), id); err == nil {
			e, err = h.Service.CancelByVenue(r.Context(), id, req.PerformerID, req.Reason)
		}
	default:
		err = models.Missing("party")
	}
	if err != nil {
		writeError(w, h.Log, "Cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *CancellationHandler) Cancellations(w http.ResponseWriter, r *http.Request) {
	list, err := h.History.ListByEngagement(r.Context(), r.URL.Query().Get(":id"))
	if err != nil {
		writeError(w, h.Log, "Cancellations", err)
		return
	}
	if list == nil {
		list = []models.Cancellation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CancellationHandler) DeleteEngagement(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(":id")
	if _, err := h.Access.EngagementVenue(r.Context(), id); err != nil {
		writeError(w, h.Log, "DeleteEngagement", err)
		return
	}
	if err := h.Service.DeleteEngagement(r.Context(), id); err != nil {
		writeError(w, h.Log, "DeleteEngagement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
