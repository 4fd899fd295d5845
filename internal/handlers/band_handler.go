package handlers

import (
	"context"
	"errors"
	"net/http"

	"gigBack/internal/models"
	"gigBack/internal/services"
)

type performerGetter interface {
	Get(ctx context.Context, id string) (models.Performer, error)
}

type BandHandler struct {
	Service    *services.BandService
	Performers performerGetter
	Access     *Access
	Log        Logger
}

type bandResponse struct {
	Band    *models.Performer   `json:"band,omitempty"`
	Members []models.BandMember `json:"members"`
}

func (h *BandHandler) CreateBand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		CreatorID string `json:"creator_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CreatorID == "" {
		writeError(w, h.Log, "CreateBand", models.Missing("creator_id"))
		return
	}
	if err := h.Access.Performer(r.Context(), req.CreatorID); err != nil {
		writeError(w, h.Log, "CreateBand", err)
		return
	}
	creator, err := h.Performers.Get(r.Context(), req.CreatorID)
	if err != nil {
		writeError(w, h.Log, "CreateBand", err)
		return
	}
	band, members, err := h.Service.CreateBand(r.Context(), req.Name, creator)
	if err != nil {
		writeError(w, h.Log, "CreateBand", err)
		return
	}
	writeJSON(w, http.StatusCreated, bandResponse{Band: &band, Members: members})
}

func (h *BandHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.Service.Members(r.Context(), r.URL.Query().Get(":id"))
	h.respondMembers(w, "Members", members, err)
}

func (h *BandHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PerformerID string `json:"performer_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "AddMember", err)
		return
	}
	members, err := h.Service.AddMember(r.Context(), bandID, req.PerformerID)
	h.respondMembers(w, "AddMember", members, err)
}

// RemoveMember lets the band admin remove anyone and a member leave.
func (h *BandHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.Access.BandAdmin(r.Context(), q.Get(":id")); err != nil {
		if !errors.Is(err, models.ErrForbidden) || h.Access.Performer(r.Context(), q.Get(":performer_id")) != nil {
			writeError(w, h.Log, "RemoveMember", err)
			return
		}
	}
	members, err := h.Service.RemoveMember(r.Context(), q.Get(":id"), q.Get(":performer_id"))
	h.respondMembers(w, "RemoveMember", members, err)
}

// SetSplits takes percentages keyed by performer id.
func (h *BandHandler) SetSplits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Splits map[string]float64 `json:"splits"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "SetSplits", err)
		return
	}
	members, err := h.Service.SetSplits(r.Context(), bandID, req.Splits)
	h.respondMembers(w, "SetSplits", members, err)
}

func (h *BandHandler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewAdminID string                       `json:"new_admin_id"`
		Updates    map[string]models.RoleUpdate `json:"updates"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "UpdateRoles", err)
		return
	}
	members, err := h.Service.TransferAdmin(r.Context(), bandID, req.NewAdminID, req.Updates)
	h.respondMembers(w, "UpdateRoles", members, err)
}

func (h *BandHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvitedBy string `json:"invited_by"`
		Email     string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "CreateInvite", err)
		return
	}
	inv, err := h.Service.CreateInvite(r.Context(), bandID, req.InvitedBy, req.Email)
	if err != nil {
		writeError(w, h.Log, "CreateInvite", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *BandHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PerformerID string `json:"performer_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Access.Performer(r.Context(), req.PerformerID); err != nil {
		writeError(w, h.Log, "AcceptInvite", err)
		return
	}
	members, err := h.Service.AcceptInvite(r.Context(), r.URL.Query().Get(":invite_id"), req.PerformerID)
	h.respondMembers(w, "AcceptInvite", members, err)
}

func (h *BandHandler) SetJoinPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "SetJoinPassword", err)
		return
	}
	if err := h.Service.SetJoinPassword(r.Context(), bandID, req.Password); err != nil {
		writeError(w, h.Log, "SetJoinPassword", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BandHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PerformerID string `json:"performer_id"`
		Password    string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Access.Performer(r.Context(), req.PerformerID); err != nil {
		writeError(w, h.Log, "Join", err)
		return
	}
	members, err := h.Service.JoinWithPassword(r.Context(), r.URL.Query().Get(":id"), req.PerformerID, req.Password)
	h.respondMembers(w, "Join", members, err)
}

func (h *BandHandler) DeleteBand(w http.ResponseWriter, r *http.Request) {
	bandID := r.URL.Query().Get(":id")
	if err := h.Access.BandAdmin(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "DeleteBand", err)
		return
	}
	if err := h.Service.DeleteBand(r.Context(), bandID); err != nil {
		writeError(w, h.Log, "DeleteBand", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BandHandler) respondMembers(w http.ResponseWriter, op string, members []models.BandMember, err error) {
	if err != nil {
		writeError(w, h.Log, op, err)
		return
	}
	if members == nil {
		members = []models.BandMember{}
	}
	writeJSON(w, http.StatusOK, bandResponse{Members: members})
}
