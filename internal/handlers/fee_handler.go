package handlers

import (
	"context"
	"net/http"

	"gigBack/internal/models"
	"gigBack/internal/services"
)

type FeeHandler struct {
	Service    *services.FeeService
	Performers performerGetter
	Access     *Access
	Log        Logger
}

type earningsResponse struct {
	PerformerID          string       `json:"performer_id"`
	WithdrawableEarnings int64        `json:"withdrawable_earnings"`
	TotalEarnings        int64        `json:"total_earnings"`
	Fees                 []models.Fee `json:"fees"`
}

// Earnings returns the performer's balances with the full fee ledger.
func (h *FeeHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(":id")
	if err := h.Access.Performer(r.Context(), id); err != nil {
		writeError(w, h.Log, "Earnings", err)
		return
	}
	p, err := h.Performers.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, "Earnings", err)
		return
	}
	fees, err := h.Service.Fees(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, "Earnings", err)
		return
	}
	if fees == nil {
		fees = []models.Fee{}
	}
	writeJSON(w, http.StatusOK, earningsResponse{
		PerformerID:          p.ID,
		WithdrawableEarnings: p.WithdrawableEarnings,
		TotalEarnings:        p.TotalEarnings,
		Fees:                 fees,
	})
}

func (h *FeeHandler) SetPayoutDestination(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string `json:"destination"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.URL.Query().Get(":id")
	if err := h.Access.Performer(r.Context(), id); err != nil {
		writeError(w, h.Log, "SetPayoutDestination", err)
		return
	}
	if err := h.Service.SetPayoutDestination(r.Context(), id, req.Destination); err != nil {
		writeError(w, h.Log, "SetPayoutDestination", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeeHandler) Payout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.URL.Query().Get(":id")
	if err := h.Access.Performer(r.Context(), id); err != nil {
		writeError(w, h.Log, "Payout", err)
		return
	}
	wd, err := h.Service.Payout(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, h.Log, "Payout", err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

type DisputeHandler struct {
	Service *services.DisputeService
	Access  *Access
	Log     Logger
}

func (h *DisputeHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PerformerID string `json:"performer_id"`
		Reason      string `json:"reason"`
		Detail      string `json:"detail"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.URL.Query().Get(":id")
	if _, err := h.Access.EngagementVenue(r.Context(), id); err != nil {
		writeError(w, h.Log, "OpenDispute", err)
		return
	}
	d, err := h.Service.OpenDispute(r.Context(), req.PerformerID, id, req.Reason, req.Detail)
	if err != nil {
		writeError(w, h.Log, "OpenDispute", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) Disputes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.Disputes(r.Context(), r.URL.Query().Get(":id"))
	if err != nil {
		writeError(w, h.Log, "Disputes", err)
		return
	}
	if list == nil {
		list = []models.Dispute{}
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewLister interface {
	ListByPerformer(ctx context.Context, performerID string) ([]models.Review, error)
}

type ReviewHandler struct {
	Service *services.ReviewService
	Reviews reviewLister
	Access  *Access
	Log     Logger
}

func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WrittenBy string `json:"written_by"`
		Rating    string `json:"rating"`
		Text      string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.URL.Query().Get(":id")
	if err := h.reviewer(r.Context(), id, req.WrittenBy); err != nil {
		writeError(w, h.Log, "SubmitReview", err)
		return
	}
	rev, err := h.Service.Submit(r.Context(), id, req.WrittenBy, req.Rating, req.Text)
	if err != nil {
		writeError(w, h.Log, "SubmitReview", err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// reviewer checks the caller speaks for the side named in written_by.
func (h *ReviewHandler) reviewer(ctx context.Context, engagementID, writtenBy string) error {
	e, err := h.Access.EngagementVenue(ctx, engagementID)
	switch {
	case writtenBy == models.RoleVenue:
		return err
	case writtenBy != models.RolePerformer:
		return models.Missing("written_by")
	case e.ID == "":
		return err
	case !e.Booked():
		return models.ErrNotBooked
	}
	return h.Access.Performer(ctx, e.BookedPerformerID)
}

func (h *ReviewHandler) PerformerReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reviews.ListByPerformer(r.Context(), r.URL.Query().Get(":id"))
	if err != nil {
		writeError(w, h.Log, "PerformerReviews", err)
		return
	}
	if list == nil {
		list = []models.Review{}
	}
	writeJSON(w, http.StatusOK, list)
}
