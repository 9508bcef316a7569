package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/auth/db"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/utils"
)

type Handler struct {
	DB     *db.DB
	Tokens *auth.TokenManager
	OTP    auth.OTPSender
	Logger *logger.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		utils.WriteError(w, apperr.Validation("email, password and name are required"))
		return
	}

	exists, err := h.DB.EmailExists(r.Context(), req.Email)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Register: email lookup failed: %v", err))
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	if exists {
		utils.WriteError(w, apperr.Conflict("email already registered"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Register: hashing failed: %v", err))
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	role := req.Role
	if role != models.RoleCustomer && role != models.RoleDriver {
		// staff and super roles are provisioned out of band
		role = models.RoleCustomer
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := h.DB.CreateUser(r.Context(), user); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Register: insert failed: %v", err))
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("AUTH", fmt.Sprintf("Registered user %s (%s)", user.ID, user.Role))
	h.respondWithTokens(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.DB.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.ComparePassword(req.Password, user.PasswordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.respondWithTokens(w, http.StatusOK, user)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	userID, err := h.Tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	user, err := h.DB.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	h.respondWithTokens(w, http.StatusOK, user)
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.DB.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Do not reveal whether the email exists.
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a code was sent"})
		return
	}

	code := auth.GenerateOTP()
	if err := h.DB.SetOTP(r.Context(), user.ID, code, time.Now().Add(10*time.Minute)); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("RequestOTP: store failed: %v", err))
		http.Error(w, "failed to issue code", http.StatusInternalServerError)
		return
	}

	// Delivery is best-effort; a failed email is logged, never surfaced.
	if err := h.OTP.SendOTP(user.Email, code); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("RequestOTP: dispatch failed for %s: %v", user.Email, err))
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a code was sent"})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.DB.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user.OTPCode == "" || user.OTPCode != req.Code ||
		user.OTPExpires == nil || time.Now().After(*user.OTPExpires) {
		http.Error(w, "invalid or expired code", http.StatusUnauthorized)
		return
	}

	if err := h.DB.ClearOTP(r.Context(), user.ID); err != nil {
		h.Logger.Warn("AUTH", fmt.Sprintf("VerifyOTP: clear failed: %v", err))
	}

	h.respondWithTokens(w, http.StatusOK, user)
}

func (h *Handler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PushToken string `json:"pushToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PushToken == "" {
		utils.WriteError(w, apperr.Validation("pushToken is required"))
		return
	}

	if err := h.DB.SetPushToken(r.Context(), claims.UserID, req.PushToken); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("SetPushToken: %v", err))
		http.Error(w, "failed to save push token", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Push token saved"})
}

func (h *Handler) respondWithTokens(w http.ResponseWriter, status int, user *models.User) {
	access, err := h.Tokens.SignAccessToken(user)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Token signing failed: %v", err))
		http.Error(w, "token signing failed", http.StatusInternalServerError)
		return
	}
	refresh, err := h.Tokens.SignRefreshToken(user)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Token signing failed: %v", err))
		http.Error(w, "token signing failed", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, status, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}
