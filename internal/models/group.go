package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	GroupOpen      = "open"
	GroupFinalized = "finalized"
)

// GroupItem is a member's contribution to a shared cart: an order line plus
// the contributing member id.
type GroupItem struct {
	UserID   string     `json:"userId"`
	ItemID   string     `json:"itemId"`
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	Price    float64    `json:"price"`
	Choice   ItemChoice `json:"choice"`
}

type GroupOrder struct {
	bun.BaseModel `bun:"table:group_orders"`

	ID              string      `bun:"id,pk" json:"id"`
	RestaurantID    string      `bun:"restaurant_id,notnull" json:"restaurant_id"`
	CreatorID       string      `bun:"creator_id,notnull" json:"creator_id"`
	InviteCode      string      `bun:"invite_code,unique,notnull" json:"invite_code"`
	Members         []string    `bun:"members,type:jsonb" json:"members"`
	Items           []GroupItem `bun:"items,type:jsonb" json:"items"`
	Status          string      `bun:"status,notnull,default:'open'" json:"status"`
	Type            string      `bun:"type,notnull,default:'delivery'" json:"type"`
	Schedule        *time.Time  `bun:"schedule,nullzero" json:"schedule,omitempty"`
	PickupAddress   *Address    `bun:"pickup_address,type:jsonb,nullzero" json:"pickup_address,omitempty"`
	DeliveryAddress *Address    `bun:"delivery_address,type:jsonb,nullzero" json:"delivery_address,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// HasMember reports whether userID already joined the group.
func (g *GroupOrder) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
