package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quickbite/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}

// EmailExists avoids a unique-violation round trip on registration.
func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return exists, nil
}

func (d *DB) SetOTP(ctx context.Context, userID, code string, expires time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("otp_code = ?", code).
		Set("otp_expires = ?", expires).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (d *DB) ClearOTP(ctx context.Context, userID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("otp_code = NULL").
		Set("otp_expires = NULL").
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (d *DB) SetPushToken(ctx context.Context, userID, token string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("push_token = ?", token).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}
