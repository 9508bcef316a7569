package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"quickbite/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// EnsureWallet is an idempotent get-or-create keyed on (owner_type, owner_id).
// The unique constraint plus DO NOTHING makes concurrent first references
// converge on a single row.
func (d *DB) EnsureWallet(ctx context.Context, ownerType, ownerID string) (*models.WalletAccount, error) {
	wallet := &models.WalletAccount{
		ID:        uuid.NewString(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	_, err := d.Bun.NewInsert().
		Model(wallet).
		On("CONFLICT (owner_type, owner_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return d.GetWallet(ctx, ownerType, ownerID)
}

func (d *DB) GetWallet(ctx context.Context, ownerType, ownerID string) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := d.Bun.NewSelect().
		Model(&wallet).
		Where("owner_type = ?", ownerType).
		Where("owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (d *DB) GetWalletByID(ctx context.Context, id string) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := d.Bun.NewSelect().
		Model(&wallet).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (d *DB) GetWalletByCustomerCode(ctx context.Context, customerCode string) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := d.Bun.NewSelect().
		Model(&wallet).
		Where("paystack_customer_code = ?", customerCode).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// SetProviderLink stores the provider customer code and virtual account.
func (d *DB) SetProviderLink(ctx context.Context, walletID, customerCode string, virtualAccount map[string]interface{}) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.WalletAccount)(nil)).
		Set("paystack_customer_code = ?", customerCode).
		Set("paystack_virtual_account = ?", virtualAccount).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", walletID).
		Exec(ctx)
	return err
}

// Credit adds to the balance with in-database arithmetic, never a
// read-modify-write in Go.
func (d *DB) Credit(ctx context.Context, walletID string, amount float64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.WalletAccount)(nil)).
		Set("balance = ROUND(balance + ?, 2)", amount).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", walletID).
		Exec(ctx)
	return err
}

// DebitIfSufficient subtracts only when the balance covers the amount.
// Returns false when the funds are gone, which the caller reports as
// InsufficientBalance.
func (d *DB) DebitIfSufficient(ctx context.Context, walletID string, amount float64) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WalletAccount)(nil)).
		Set("balance = ROUND(balance - ?, 2)", amount).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", walletID).
		Where("balance >= ?", amount).
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

// InsertTransaction appends a wallet transaction. The unique reference makes
// a replayed insert a no-op; the return value says whether this call won.
func (d *DB) InsertTransaction(ctx context.Context, tx *models.WalletTransaction) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(tx).
		On("CONFLICT (reference) DO NOTHING").
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

func (d *DB) GetTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	err := d.Bun.NewSelect().
		Model(&tx).
		Where("reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ResolveTransactionIfPending flips a transaction pending -> status exactly
// once. Replayed webhooks see zero rows affected and do nothing.
func (d *DB) ResolveTransactionIfPending(ctx context.Context, reference, status string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WalletTransaction)(nil)).
		Set("status = ?", status).
		Where("reference = ?", reference).
		Where("status = ?", models.TxPending).
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

func (d *DB) ListTransactions(ctx context.Context, walletID string) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := d.Bun.NewSelect().
		Model(&txs).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// InsertLedgerEntry writes one earnings row per (order, trigger). The unique
// constraint is the double-posting guard; false means the accrual already
// happened.
func (d *DB) InsertLedgerEntry(ctx context.Context, entry *models.EarningsLedgerEntry) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(entry).
		On(`CONFLICT (order_id, "trigger") DO NOTHING`).
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

func (d *DB) GetRecipient(ctx context.Context, ownerType, ownerID string) (*models.TransferRecipient, error) {
	var rec models.TransferRecipient
	err := d.Bun.NewSelect().
		Model(&rec).
		Where("owner_type = ?", ownerType).
		Where("owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *DB) SaveRecipient(ctx context.Context, rec *models.TransferRecipient) error {
	_, err := d.Bun.NewInsert().Model(rec).Exec(ctx)
	return err
}
