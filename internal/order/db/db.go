package db

import (
	"context"

	"github.com/uptrace/bun"

	"quickbite/internal/models"
)

type DB struct {
	Bun *bun.DB
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

func (d *DB) CreateOrder(ctx context.Context, ord *models.Order) error {
	_, err := d.Bun.NewInsert().Model(ord).Exec(ctx)
	return err
}

// UpdateStatusGuard persists a status transition with a compare-and-swap on
// the current status. Returns false when the row was not in `from` anymore,
// which the caller must treat as having lost the race.
func (d *DB) UpdateStatusGuard(ctx context.Context, orderID, from, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", orderID).
		Where("status = ?", from).
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

// MarkPaidIfPending flips payment_status pending -> paid exactly once.
// Returns false when the order was already paid or absent.
func (d *DB) MarkPaidIfPending(ctx context.Context, orderID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", models.PaymentPaid).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", orderID).
		Where("payment_status = ?", models.PaymentPending).
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

func (d *DB) ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) ListOrdersForRestaurant(ctx context.Context, restaurantID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := d.Bun.NewSelect().
		Model(&r).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) GetMenuItems(ctx context.Context, restaurantID string, ids []string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("restaurant_id = ?", restaurantID).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetSettings returns the single settings row, falling back to defaults when
// the table is empty.
func (d *DB) GetSettings(ctx context.Context) (*models.SystemSettings, error) {
	var settings models.SystemSettings
	err := d.Bun.NewSelect().
		Model(&settings).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return &models.SystemSettings{TaxRate: 5, DeliveryFee: 5, CommissionRate: 10}, nil
	}
	return &settings, nil
}
