package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DriverLocation is a single current-position row per driver, last write wins.
type DriverLocation struct {
	bun.BaseModel `bun:"table:driver_locations"`

	DriverID  string    `bun:"driver_id,pk" json:"driver_id"`
	Lat       float64   `bun:"lat,notnull" json:"lat"`
	Lng       float64   `bun:"lng,notnull" json:"lng"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
