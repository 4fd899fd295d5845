package handlers

import (
	"net/http"
	"time"

	"gigBack/internal/models"
	"gigBack/internal/services"
)

type EngagementHandler struct {
	Service *services.EngagementService
	Access  *Access
	Log     Logger
}

type postEngagementRequest struct {
	VenueID string    `json:"venue_id"`
	Kind    string    `json:"kind"`
	Budget  int64     `json:"budget"`
	StartAt time.Time `json:"start_at"`
}

type offerRequest struct {
	PerformerID   string `json:"performer_id"`
	Fee           int64  `json:"fee"`
	SentBy        string `json:"sent_by"`
	Payable       bool   `json:"payable"`
	PaymentMethod string `json:"payment_method"`
}

func (h *EngagementHandler) PostEngagement(w http.ResponseWriter, r *http.Request) {
	var req postEngagementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Access.Venue(r.Context(), req.VenueID); err != nil {
		writeError(w, h.Log, "PostEngagement", err)
		return
	}
	e, err := h.Service.PostEngagement(r.Context(), models.Engagement{
		VenueID: req.VenueID,
		Kind:    req.Kind,
		Budget:  req.Budget,
		StartAt: req.StartAt.UTC(),
	})
	if err != nil {
		writeError(w, h.Log, "PostEngagement", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *EngagementHandler) GetEngagement(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.Get(r.Context(), r.URL.Query().Get(":id"))
	if err != nil {
		writeError(w, h.Log, "GetEngagement", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EngagementHandler) DuplicateEngagement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartAt time.Time `json:"start_at"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.Access.EngagementVenue(r.Context(), r.URL.Query().Get(":id")); err != nil {
		writeError(w, h.Log, "DuplicateEngagement", err)
		return
	}
	e, err := h.Service.DuplicateEngagement(r.Context(), r.URL.Query().Get(":id"), req.StartAt.UTC())
	if err != nil {
		writeError(w, h.Log, "DuplicateEngagement", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *EngagementHandler) Apply(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "Apply", h.performerSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.Apply(r.Context(), r.URL.Query().Get(":id"), req.PerformerID, req.Fee)
	})
}

func (h *EngagementHandler) Invite(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "Invite", h.venueSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.Invite(r.Context(), r.URL.Query().Get(":id"), req.PerformerID)
	})
}

func (h *EngagementHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "Negotiate", h.senderSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.Negotiate(r.Context(), r.URL.Query().Get(":id"), req.PerformerID, req.Fee, req.SentBy)
	})
}

func (h *EngagementHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "AcceptOffer", h.venueSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.AcceptOffer(r.Context(), r.URL.Query().Get(":id"), req.PerformerID, req.Payable)
	})
}

func (h *EngagementHandler) DeclineApplication(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "DeclineApplication", h.eitherSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.DeclineApplication(r.Context(), r.URL.Query().Get(":id"), req.PerformerID)
	})
}

func (h *EngagementHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "StartPayment", h.venueSide, func(req offerRequest) (models.Engagement, error) {
		return h.Service.StartPayment(r.Context(), r.URL.Query().Get(":id"), req.PerformerID, req.PaymentMethod)
	})
}

func (h *EngagementHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.offer(w, r, "ConfirmPayment", nil, func(req offerRequest) (models.Engagement, error) {
		return h.Service.ConfirmPayment(r.Context(), r.URL.Query().Get(":id"), req.PerformerID)
	})
}

func (h *EngagementHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(":id")
	if _, err := h.Access.EngagementVenue(r.Context(), id); err != nil {
		writeError(w, h.Log, "MarkViewed", err)
		return
	}
	e, err := h.Service.MarkViewed(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, "MarkViewed", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// accessCheck rejects a caller who may not make the offer request.
type accessCheck func(r *http.Request, req offerRequest) error

func (h *EngagementHandler) venueSide(r *http.Request, _ offerRequest) error {
	_, err := h.Access.EngagementVenue(r.Context(), r.URL.Query().Get(":id"))
	return err
}

func (h *EngagementHandler) performerSide(r *http.Request, req offerRequest) error {
	return h.Access.Performer(r.Context(), req.PerformerID)
}

func (h *EngagementHandler) eitherSide(r *http.Request, req offerRequest) error {
	return h.Access.Party(r.Context(), r.URL.Query().Get(":id"), req.PerformerID)
}

// senderSide checks the caller against the side the counter-offer claims to come from.
func (h *EngagementHandler) senderSide(r *http.Request, req offerRequest) error {
	if req.SentBy == models.SentByVenue {
		return h.venueSide(r, req)
	}
	return h.performerSide(r, req)
}

// offer runs fn when check admits the caller. A nil check is for routes the
// admin middleware already guards.
func (h *EngagementHandler) offer(w http.ResponseWriter, r *http.Request, op string, check accessCheck, fn func(offerRequest) (models.Engagement, error)) {
	var req offerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if check != nil {
		if err := check(r, req); err != nil {
			writeError(w, h.Log, op, err)
			return
		}
	}
	e, err := fn(req)
	if err != nil {
		writeError(w, h.Log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
