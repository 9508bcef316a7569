package db

import (
	"context"

	"github.com/uptrace/bun"

	"quickbite/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateGroup(ctx context.Context, g *models.GroupOrder) error {
	_, err := d.Bun.NewInsert().Model(g).Exec(ctx)
	return err
}

func (d *DB) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.GroupOrder)(nil)).
		Where("LOWER(invite_code) = LOWER(?)", code).
		Exists(ctx)
}

func (d *DB) GetGroupByID(ctx context.Context, id string) (*models.GroupOrder, error) {
	var g models.GroupOrder
	err := d.Bun.NewSelect().
		Model(&g).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGroupByCode resolves an invite code case-insensitively.
func (d *DB) GetGroupByCode(ctx context.Context, code string) (*models.GroupOrder, error) {
	var g models.GroupOrder
	err := d.Bun.NewSelect().
		Model(&g).
		Where("LOWER(invite_code) = LOWER(?)", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateMembers replaces the member set while the group is still open.
// Returns false when the group was finalized in the meantime.
func (d *DB) UpdateMembers(ctx context.Context, g *models.GroupOrder) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(g).
		Column("members", "updated_at").
		Where("id = ?", g.ID).
		Where("status = ?", models.GroupOpen).
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

// UpdateItems replaces the contributed items while the group is still open.
func (d *DB) UpdateItems(ctx context.Context, g *models.GroupOrder) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(g).
		Column("items", "updated_at").
		Where("id = ?", g.ID).
		Where("status = ?", models.GroupOpen).
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

// FinalizeGuard flips the group open -> finalized exactly once.
func (d *DB) FinalizeGuard(ctx context.Context, groupID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.GroupOrder)(nil)).
		Set("status = ?", models.GroupFinalized).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", groupID).
		Where("status = ?", models.GroupOpen).
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

func (d *DB) CreateOrder(ctx context.Context, ord *models.Order) error {
	_, err := d.Bun.NewInsert().Model(ord).Exec(ctx)
	return err
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

func (d *DB) GetMenuItem(ctx context.Context, restaurantID, itemID string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("restaurant_id = ?", restaurantID).
		Where("id = ?", itemID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

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
