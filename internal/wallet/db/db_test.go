package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"quickbite/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.WalletAccount)(nil),
		(*models.WalletTransaction)(nil),
		(*models.EarningsLedgerEntry)(nil),
		(*models.TransferRecipient)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	// The conditional inserts rely on these.
	_, err = bunDB.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_owner ON wallet_accounts (owner_type, owner_id)`)
	require.NoError(t, err)
	_, err = bunDB.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_order_trigger ON earnings_ledger (order_id, "trigger")`)
	require.NoError(t, err)

	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func TestEnsureWalletIdempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	first, err := d.EnsureWallet(ctx, models.OwnerRestaurant, "rest-1")
	require.NoError(t, err)
	second, err := d.EnsureWallet(ctx, models.OwnerRestaurant, "rest-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "repeated ensure must return the same wallet")

	count, err := d.Bun.NewSelect().Model((*models.WalletAccount)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A different owner gets a different wallet.
	other, err := d.EnsureWallet(ctx, models.OwnerDriver, "rest-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreditAndConditionalDebit(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	wallet, err := d.EnsureWallet(ctx, models.OwnerDriver, "driver-1")
	require.NoError(t, err)

	require.NoError(t, d.Credit(ctx, wallet.ID, 50.25))

	ok, err := d.DebitIfSufficient(ctx, wallet.ID, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	// More than the remaining 30.25 must be refused and leave the balance alone.
	ok, err = d.DebitIfSufficient(ctx, wallet.ID, 30.26)
	require.NoError(t, err)
	assert.False(t, ok)

	wallet, err = d.GetWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.25, wallet.Balance)
}

func TestInsertTransactionDuplicateReference(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	wallet, err := d.EnsureWallet(ctx, models.OwnerRestaurant, "rest-1")
	require.NoError(t, err)

	tx := func() *models.WalletTransaction {
		return &models.WalletTransaction{
			ID:        uuid.NewString(),
			WalletID:  wallet.ID,
			Type:      models.TxCredit,
			Amount:    10,
			Reference: "order_1_restaurant",
			Status:    models.TxSuccess,
			CreatedAt: time.Now(),
		}
	}

	inserted, err := d.InsertTransaction(ctx, tx())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = d.InsertTransaction(ctx, tx())
	require.NoError(t, err)
	assert.False(t, inserted, "same reference must not insert twice")
}

func TestResolveTransactionExactlyOnce(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	wallet, err := d.EnsureWallet(ctx, models.OwnerDriver, "driver-1")
	require.NoError(t, err)

	_, err = d.InsertTransaction(ctx, &models.WalletTransaction{
		ID:        uuid.NewString(),
		WalletID:  wallet.ID,
		Type:      models.TxDebit,
		Amount:    25,
		Reference: "wd_1",
		Status:    models.TxPending,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	resolved, err := d.ResolveTransactionIfPending(ctx, "wd_1", models.TxFailed)
	require.NoError(t, err)
	assert.True(t, resolved)

	resolved, err = d.ResolveTransactionIfPending(ctx, "wd_1", models.TxFailed)
	require.NoError(t, err)
	assert.False(t, resolved, "a resolved transaction must not flip again")

	tx, err := d.GetTransactionByReference(ctx, "wd_1")
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, tx.Status)
}

func TestLedgerEntryUniquePerOrderAndTrigger(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	entry := func(trigger string) *models.EarningsLedgerEntry {
		return &models.EarningsLedgerEntry{
			ID:           uuid.NewString(),
			OrderID:      "order-1",
			RestaurantID: "rest-1",
			Trigger:      trigger,
			Subtotal:     20,
			Status:       models.LedgerAccrued,
			CreatedAt:    time.Now(),
		}
	}

	inserted, err := d.InsertLedgerEntry(ctx, entry(models.TriggerPayment))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = d.InsertLedgerEntry(ctx, entry(models.TriggerPayment))
	require.NoError(t, err)
	assert.False(t, inserted, "second payment accrual for the same order must be refused")

	// A different trigger for the same order is a separate accrual event.
	inserted, err = d.InsertLedgerEntry(ctx, entry(models.TriggerDelivery))
	require.NoError(t, err)
	assert.True(t, inserted)
}
