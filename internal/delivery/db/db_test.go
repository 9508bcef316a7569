package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

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
	// A single connection keeps concurrent claims serialized at the driver
	// level instead of failing with SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	_, err = bunDB.NewCreateTable().Model((*models.Order)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	_, err = bunDB.NewCreateTable().Model((*models.DriverLocation)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func insertOrder(t *testing.T, d *DB, ord *models.Order) {
	t.Helper()
	if ord.CreatedAt.IsZero() {
		ord.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(ord).Exec(context.Background())
	require.NoError(t, err)
}

func TestClaimOrderFirstWinsSecondConflicts(t *testing.T) {
	d := setupTestDB(t)
	insertOrder(t, d, &models.Order{
		ID:           "order-1",
		UserID:       "customer-1",
		RestaurantID: "rest-1",
		Status:       models.StatusPending,
		Type:         models.TypeDelivery,
	})

	ctx := context.Background()
	claimed, err := d.ClaimOrder(ctx, "order-1", "driver-a")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = d.ClaimOrder(ctx, "order-1", "driver-b")
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	ord, err := d.GetOrderByID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "driver-a", ord.DriverID)
	assert.Equal(t, models.StatusAccepted, ord.Status)
}

func TestClaimOrderConcurrentExactlyOneWinner(t *testing.T) {
	d := setupTestDB(t)
	insertOrder(t, d, &models.Order{
		ID:           "order-1",
		UserID:       "customer-1",
		RestaurantID: "rest-1",
		Status:       models.StatusPending,
		Type:         models.TypeDelivery,
	})

	const drivers = 10
	var wg sync.WaitGroup
	results := make([]bool, drivers)

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := d.ClaimOrder(context.Background(), "order-1", fmt.Sprintf("driver-%d", i))
			assert.NoError(t, err)
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	winners := 0
	winnerID := ""
	for i, won := range results {
		if won {
			winners++
			winnerID = fmt.Sprintf("driver-%d", i)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent claim must win")

	ord, err := d.GetOrderByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, winnerID, ord.DriverID)
}

func TestClaimOrderMissingRow(t *testing.T) {
	d := setupTestDB(t)
	claimed, err := d.ClaimOrder(context.Background(), "ghost", "driver-a")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestListAvailableOrdering(t *testing.T) {
	d := setupTestDB(t)
	base := time.Now().Add(-time.Hour)

	insertOrder(t, d, &models.Order{ID: "newer", UserID: "u", RestaurantID: "r", Status: models.StatusPending, Type: models.TypeDelivery, CreatedAt: base.Add(10 * time.Minute)})
	insertOrder(t, d, &models.Order{ID: "older", UserID: "u", RestaurantID: "r", Status: models.StatusPreparing, Type: models.TypeDelivery, CreatedAt: base})
	// Excluded: pickup type, already claimed, wrong status.
	insertOrder(t, d, &models.Order{ID: "pickup", UserID: "u", RestaurantID: "r", Status: models.StatusPending, Type: models.TypePickup, CreatedAt: base})
	insertOrder(t, d, &models.Order{ID: "claimed", UserID: "u", RestaurantID: "r", DriverID: "driver-x", Status: models.StatusAccepted, Type: models.TypeDelivery, CreatedAt: base})
	insertOrder(t, d, &models.Order{ID: "done", UserID: "u", RestaurantID: "r", Status: models.StatusDelivered, Type: models.TypeDelivery, CreatedAt: base})

	orders, err := d.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "older", orders[0].ID, "oldest order must surface first")
	assert.Equal(t, "newer", orders[1].ID)
}

func TestUpsertLocationLastWriteWins(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.UpsertLocation(ctx, &models.DriverLocation{DriverID: "driver-1", Lat: 1, Lng: 2}))
	require.NoError(t, d.UpsertLocation(ctx, &models.DriverLocation{DriverID: "driver-1", Lat: 3, Lng: 4}))

	loc, err := d.GetLocation(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, loc.Lat)
	assert.Equal(t, 4.0, loc.Lng)

	var count int
	count, err = d.Bun.NewSelect().Model((*models.DriverLocation)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one row per driver, no history")
}

func TestHasActiveOrderWith(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	insertOrder(t, d, &models.Order{ID: "o1", UserID: "customer-1", RestaurantID: "r", DriverID: "driver-1", Status: models.StatusPickedUp, Type: models.TypeDelivery})

	has, err := d.HasActiveOrderWith(ctx, "customer-1", "driver-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = d.HasActiveOrderWith(ctx, "customer-2", "driver-1")
	require.NoError(t, err)
	assert.False(t, has)

	// Once delivered the relation no longer grants access.
	_, err = d.Bun.NewUpdate().Model((*models.Order)(nil)).
		Set("status = ?", models.StatusDelivered).
		Where("id = ?", "o1").
		Exec(ctx)
	require.NoError(t, err)

	has, err = d.HasActiveOrderWith(ctx, "customer-1", "driver-1")
	require.NoError(t, err)
	assert.False(t, has)
}
