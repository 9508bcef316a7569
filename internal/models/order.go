package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. pending/scheduled are entry states, delivered/rejected/cancelled
// are terminal and retained for history.
const (
	StatusPending        = "pending"
	StatusScheduled      = "scheduled"
	StatusAccepted       = "accepted"
	StatusPreparing      = "preparing"
	StatusReadyForPickup = "ready_for_pickup"
	StatusPickedUp       = "picked_up"
	StatusDelivered      = "delivered"
	StatusRejected       = "rejected"
	StatusCancelled      = "cancelled"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

const (
	TypeDelivery = "delivery"
	TypePickup   = "pickup"
)

// ItemChoice is the customer's selected option set for one line item.
type ItemChoice struct {
	SizeID   string   `json:"sizeId,omitempty"`
	AddOnIDs []string `json:"addOnIds,omitempty"`
	ExtraIDs []string `json:"extraIds,omitempty"`
}

// OrderItem is a priced snapshot of a menu item at order time. Stored inline
// on the order so later menu edits never change history.
type OrderItem struct {
	ItemID   string     `json:"itemId"`
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	Price    float64    `json:"price"`
	Choice   ItemChoice `json:"choice"`
}

type Address struct {
	Label  string  `json:"label,omitempty"`
	Street string  `json:"street,omitempty"`
	City   string  `json:"city,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string      `bun:"id,pk" json:"id"`
	UserID          string      `bun:"user_id,notnull" json:"user_id"`
	RestaurantID    string      `bun:"restaurant_id,notnull" json:"restaurant_id"`
	DriverID        string      `bun:"driver_id,nullzero" json:"driver_id,omitempty"`
	Items           []OrderItem `bun:"items,type:jsonb" json:"items"`
	Subtotal        float64     `bun:"subtotal,notnull" json:"subtotal"`
	Tax             float64     `bun:"tax,notnull" json:"tax"`
	DeliveryFee     float64     `bun:"delivery_fee,notnull" json:"delivery_fee"`
	Total           float64     `bun:"total,notnull" json:"total"`
	Status          string      `bun:"status,notnull" json:"status"`
	PaymentStatus   string      `bun:"payment_status,notnull,default:'pending'" json:"payment_status"`
	Type            string      `bun:"type,notnull,default:'delivery'" json:"type"`
	Schedule        *time.Time  `bun:"schedule,nullzero" json:"schedule,omitempty"`
	PickupAddress   *Address    `bun:"pickup_address,type:jsonb,nullzero" json:"pickup_address,omitempty"`
	DeliveryAddress *Address    `bun:"delivery_address,type:jsonb,nullzero" json:"delivery_address,omitempty"`
	GroupID         string      `bun:"group_id,nullzero" json:"group_id,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// IsTerminal reports whether the status admits no further transition.
func IsTerminal(status string) bool {
	switch status {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}
