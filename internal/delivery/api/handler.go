package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/delivery"
	"quickbite/internal/utils"
)

type Handler struct {
	Service *delivery.Service
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		DriverID string `json:"driverId"`
		OrderID  string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" || req.OrderID == "" {
		utils.WriteError(w, apperr.Validation("driverId and orderId are required"))
		return
	}

	ord, err := h.Service.AcceptOrder(r.Context(), claims, req.DriverID, req.OrderID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ord)
}

func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.Service.AvailableOrders(r.Context(), claims)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) DriverOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.Service.DriverOrders(r.Context(), claims, chi.URLParam(r, "driverId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		DriverID string  `json:"driverId"`
		Lat      float64 `json:"lat"`
		Lng      float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		utils.WriteError(w, apperr.Validation("driverId, lat and lng are required"))
		return
	}

	if err := h.Service.UpdateLocation(r.Context(), claims, req.DriverID, req.Lat, req.Lng); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Location updated"})
}

func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	loc, err := h.Service.GetLocation(r.Context(), claims, chi.URLParam(r, "driverId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, loc)
}
