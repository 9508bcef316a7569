package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"quickbite/internal/models"
)

// availableStatuses are the stages at which an unassigned delivery order is
// shown to drivers.
var availableStatuses = []string{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusReadyForPickup,
}

// activeStatuses are the stages during which a driver's position is relevant
// to an order.
var activeStatuses = []string{
	models.StatusAccepted,
	models.StatusPickedUp,
	models.StatusPreparing,
	models.StatusReadyForPickup,
}

type DB struct {
	Bun *bun.DB
}

// ClaimOrder assigns the order to the driver only if no driver holds it yet.
// The WHERE clause is the whole concurrency story: under N concurrent claims
// exactly one row update wins, the rest see zero rows affected.
func (d *DB) ClaimOrder(ctx context.Context, orderID, driverID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("driver_id = ?", driverID).
		Set("status = ?", models.StatusAccepted).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", orderID).
		Where("driver_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var ord models.Order
	err := d.Bun.NewSelect().
		Model(&ord).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ord, nil
}

// ListAvailable returns unassigned delivery orders oldest first, so the
// longest-waiting order surfaces to drivers first.
func (d *DB) ListAvailable(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("type = ?", models.TypeDelivery).
		Where("driver_id IS NULL").
		Where("status IN (?)", bun.In(availableStatuses)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) ListForDriver(ctx context.Context, driverID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) ListActiveForDriver(ctx context.Context, driverID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("driver_id = ?", driverID).
		Where("status IN (?)", bun.In(activeStatuses)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// HasActiveOrderWith reports whether the user currently has an in-flight
// order assigned to the driver. Queried live so location access reflects
// order state, not a stale relation.
func (d *DB) HasActiveOrderWith(ctx context.Context, userID, driverID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("user_id = ?", userID).
		Where("driver_id = ?", driverID).
		Where("status IN (?)", bun.In(activeStatuses)).
		Exists(ctx)
}

// UpsertLocation stores the driver's current position, last write wins.
func (d *DB) UpsertLocation(ctx context.Context, loc *models.DriverLocation) error {
	loc.UpdatedAt = time.Now()
	_, err := d.Bun.NewInsert().
		Model(loc).
		On("CONFLICT (driver_id) DO UPDATE").
		Set("lat = EXCLUDED.lat").
		Set("lng = EXCLUDED.lng").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (d *DB) GetLocation(ctx context.Context, driverID string) (*models.DriverLocation, error) {
	var loc models.DriverLocation
	err := d.Bun.NewSelect().
		Model(&loc).
		Where("driver_id = ?", driverID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
