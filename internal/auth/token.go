package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quickbite/internal/config"
	"quickbite/internal/models"
)

// Claims is the authenticated identity handlers and services act on behalf of.
type Claims struct {
	UserID       string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id,omitempty"`
}

// IsSuper reports whether the actor holds the platform super-role.
func (c *Claims) IsSuper() bool {
	return c.Role == models.RoleSuperAdmin
}

// IsStaffOf reports whether the actor is staff of the given restaurant.
func (c *Claims) IsStaffOf(restaurantID string) bool {
	return c.Role == models.RoleAdmin && c.RestaurantID == restaurantID && restaurantID != ""
}

type tokenClaims struct {
	Claims
	TokenType string `json:"tokenType,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the platform's HS256 access and refresh tokens.
type TokenManager struct {
	cfg config.JWTConfig
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{cfg: cfg}
}

func (tm *TokenManager) SignAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Claims: Claims{
			UserID:       user.ID,
			Email:        user.Email,
			Role:         user.Role,
			RestaurantID: user.RestaurantID,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.cfg.AccessExpires)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.cfg.Secret))
}

func (tm *TokenManager) SignRefreshToken(user *models.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Claims:    Claims{UserID: user.ID},
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.cfg.RefreshExpires)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.cfg.RefreshSecret))
}

func (tm *TokenManager) verify(tokenString, secret string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// VerifyAccessToken validates an access token and returns the actor claims.
func (tm *TokenManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := tm.verify(tokenString, tm.cfg.Secret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == "refresh" {
		return nil, errors.New("refresh token used as access token")
	}
	return &claims.Claims, nil
}

// VerifyRefreshToken validates a refresh token and returns the subject user id.
func (tm *TokenManager) VerifyRefreshToken(tokenString string) (string, error) {
	claims, err := tm.verify(tokenString, tm.cfg.RefreshSecret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "refresh" {
		return "", errors.New("not a refresh token")
	}
	return claims.UserID, nil
}
