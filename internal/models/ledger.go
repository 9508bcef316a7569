package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Accrual triggers. One ledger row may exist per (order, trigger).
const (
	TriggerPayment  = "payment"  // payment confirmation
	TriggerDelivery = "delivery" // delivery completion
)

const (
	LedgerAccrued = "accrued"
	LedgerPaidOut = "paid_out"
)

// EarningsLedgerEntry is an immutable record of how an order's money was
// split among platform, restaurant and driver.
type EarningsLedgerEntry struct {
	bun.BaseModel `bun:"table:earnings_ledger"`

	ID                 string    `bun:"id,pk" json:"id"`
	OrderID            string    `bun:"order_id,notnull" json:"order_id"`
	RestaurantID       string    `bun:"restaurant_id,notnull" json:"restaurant_id"`
	DriverID           string    `bun:"driver_id,nullzero" json:"driver_id,omitempty"`
	Trigger            string    `bun:"trigger,notnull" json:"trigger"`
	Subtotal           float64   `bun:"subtotal,notnull" json:"subtotal"`
	Tax                float64   `bun:"tax,notnull" json:"tax"`
	DeliveryFee        float64   `bun:"delivery_fee,notnull" json:"delivery_fee"`
	PlatformCommission float64   `bun:"platform_commission,notnull" json:"platform_commission"`
	RestaurantEarning  float64   `bun:"restaurant_earning,notnull" json:"restaurant_earning"`
	DriverEarning      float64   `bun:"driver_earning,notnull" json:"driver_earning"`
	Status             string    `bun:"status,notnull,default:'accrued'" json:"status"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
