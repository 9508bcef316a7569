package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/payment"
	"quickbite/internal/utils"
)

type Handler struct {
	Service *payment.Service
}

func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		utils.WriteError(w, apperr.Validation("orderId is required"))
		return
	}

	result, err := h.Service.Initialize(r.Context(), claims, req.OrderID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ord, err := h.Service.Verify(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ord)
}
