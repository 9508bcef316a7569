package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/group"
	"quickbite/internal/utils"
)

type Handler struct {
	Service *group.Service
	// JoinBaseURL is the client-facing URL prefix encoded into invite QR codes.
	JoinBaseURL string
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var in group.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	g, err := h.Service.Create(r.Context(), claims, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, g)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		GroupID    string `json:"groupId"`
		InviteCode string `json:"inviteCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}
	target := req.GroupID
	if target == "" {
		target = req.InviteCode
	}

	g, err := h.Service.Join(r.Context(), claims, target)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		GroupID string `json:"groupId"`
		group.AddItemInput
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GroupID == "" || req.ItemID == "" {
		utils.WriteError(w, apperr.Validation("groupId and itemId are required"))
		return
	}

	g, err := h.Service.AddItem(r.Context(), claims, req.GroupID, req.AddItemInput)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ord, err := h.Service.Finalize(r.Context(), claims, chi.URLParam(r, "groupId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, ord)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	g, err := h.Service.Get(r.Context(), claims, chi.URLParam(r, "groupId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, g)
}

// InviteQR renders the group's invite link as a PNG QR code.
func (h *Handler) InviteQR(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	g, err := h.Service.Get(r.Context(), claims, chi.URLParam(r, "groupId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	content := g.InviteCode
	if h.JoinBaseURL != "" {
		content = fmt.Sprintf("%s/group/join?code=%s", h.JoinBaseURL, g.InviteCode)
	}
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
