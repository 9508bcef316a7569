package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/utils"
	"quickbite/internal/wallet"
)

type Handler struct {
	Service *wallet.Service
	Logger  *logger.Logger
}

// walletOwner maps the actor to the wallet they operate: staff act on their
// restaurant's wallet, everyone else on their own.
func walletOwner(claims *auth.Claims) (ownerType, ownerID string, err error) {
	switch claims.Role {
	case models.RoleDriver:
		return models.OwnerDriver, claims.UserID, nil
	case models.RoleAdmin:
		if claims.RestaurantID == "" {
			return "", "", apperr.Forbidden("staff account has no restaurant")
		}
		return models.OwnerRestaurant, claims.RestaurantID, nil
	default:
		return models.OwnerCustomer, claims.UserID, nil
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerType, ownerID, err := walletOwner(claims)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	acct, err := h.Service.Balance(r.Context(), ownerType, ownerID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerType, ownerID, err := walletOwner(claims)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	txs, err := h.Service.Transactions(r.Context(), ownerType, ownerID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerType, ownerID, err := walletOwner(claims)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Amount float64            `json:"amount"`
		Bank   wallet.BankDetails `json:"bank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	tx, err := h.Service.Withdraw(r.Context(), ownerType, ownerID, req.Amount, req.Bank)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerType, ownerID, err := walletOwner(claims)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	acct, err := h.Service.Setup(r.Context(), claims, ownerType, ownerID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, acct)
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Customer  struct {
			CustomerCode string `json:"customer_code"`
		} `json:"customer"`
	} `json:"data"`
}

// Webhook consumes provider callbacks. It always acknowledges with 200 so
// the provider stops retrying; internal failures are logged only.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("Malformed webhook body: %v", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	var err error
	switch event.Event {
	case "charge.success":
		err = h.Service.HandleChargeSuccess(ctx, event.Data.Customer.CustomerCode, event.Data.Reference, event.Data.Amount)
	case "transfer.success":
		err = h.Service.HandleTransferSuccess(ctx, event.Data.Reference)
	case "transfer.failed", "transfer.reversed":
		err = h.Service.HandleTransferFailed(ctx, event.Data.Reference)
	default:
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event %s", event.Event))
	}
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Handling %s (%s) failed: %v", event.Event, event.Data.Reference, err))
	}

	w.WriteHeader(http.StatusOK)
}
