package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Address   string    `bun:"address,nullzero" json:"address,omitempty"`
	Phone     string    `bun:"phone,nullzero" json:"phone,omitempty"`
	ImageURL  string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Lat       float64   `bun:"lat,nullzero" json:"lat,omitempty"`
	Lng       float64   `bun:"lng,nullzero" json:"lng,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// MenuOption is one selectable option (a size, an add-on or an extra) with a
// price delta relative to the item's base price.
type MenuOption struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	PriceDelta float64 `json:"priceDelta"`
}

type MenuOptions struct {
	Sizes  []MenuOption `json:"sizes,omitempty"`
	AddOns []MenuOption `json:"addOns,omitempty"`
	Extras []MenuOption `json:"extras,omitempty"`
}

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ID           string      `bun:"id,pk" json:"id"`
	RestaurantID string      `bun:"restaurant_id,notnull" json:"restaurant_id"`
	Name         string      `bun:"name,notnull" json:"name"`
	Price        float64     `bun:"price,notnull" json:"price"`
	IsAvailable  bool        `bun:"is_available,notnull,default:true" json:"is_available"`
	Options      MenuOptions `bun:"options,type:jsonb" json:"options"`
	CreatedAt    time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// SystemSettings is a single-row table read by pricing and ledger code.
// Rates are percentages (5 means 5%).
type SystemSettings struct {
	bun.BaseModel `bun:"table:system_settings"`

	ID             int64   `bun:"id,pk,autoincrement" json:"id"`
	TaxRate        float64 `bun:"tax_rate,notnull,default:5" json:"tax_rate"`
	DeliveryFee    float64 `bun:"delivery_fee,notnull,default:5" json:"delivery_fee"`
	CommissionRate float64 `bun:"commission_rate,notnull,default:10" json:"commission_rate"`
}
