package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleCustomer   = "customer"
	RoleDriver     = "driver"
	RoleAdmin      = "admin" // restaurant staff, scoped by RestaurantID
	RoleSuperAdmin = "super_admin"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           string     `bun:"id,pk" json:"id"`
	Email        string     `bun:"email,unique,notnull" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Name         string     `bun:"name,notnull" json:"name"`
	Phone        string     `bun:"phone,nullzero" json:"phone,omitempty"`
	Role         string     `bun:"role,notnull,default:'customer'" json:"role"`
	RestaurantID string     `bun:"restaurant_id,nullzero" json:"restaurant_id,omitempty"`
	PushToken    string     `bun:"push_token,nullzero" json:"-"`
	OTPCode      string     `bun:"otp_code,nullzero" json:"-"`
	OTPExpires   *time.Time `bun:"otp_expires,nullzero" json:"-"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
