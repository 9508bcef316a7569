package group

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
)

type mockDB struct {
	groups      map[string]*models.GroupOrder
	restaurants map[string]*models.Restaurant
	menuItems   map[string]*models.MenuItem
	orders      []*models.Order
}

func newMockDB() *mockDB {
	return &mockDB{
		groups:      make(map[string]*models.GroupOrder),
		restaurants: map[string]*models.Restaurant{"rest-1": {ID: "rest-1"}},
		menuItems:   make(map[string]*models.MenuItem),
	}
}

func (m *mockDB) CreateGroup(_ context.Context, g *models.GroupOrder) error {
	m.groups[g.ID] = g
	return nil
}

func (m *mockDB) InviteCodeExists(_ context.Context, _ string) (bool, error) { return false, nil }

func (m *mockDB) GetGroupByID(_ context.Context, id string) (*models.GroupOrder, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	cp.Items = append([]models.GroupItem(nil), g.Items...)
	return &cp, nil
}

func (m *mockDB) GetGroupByCode(_ context.Context, code string) (*models.GroupOrder, error) {
	for _, g := range m.groups {
		if g.InviteCode == code {
			return m.GetGroupByID(context.Background(), g.ID)
		}
	}
	return nil, errors.New("no rows")
}

func (m *mockDB) UpdateMembers(_ context.Context, g *models.GroupOrder) (bool, error) {
	stored, ok := m.groups[g.ID]
	if !ok || stored.Status != models.GroupOpen {
		return false, nil
	}
	stored.Members = g.Members
	return true, nil
}

func (m *mockDB) UpdateItems(_ context.Context, g *models.GroupOrder) (bool, error) {
	stored, ok := m.groups[g.ID]
	if !ok || stored.Status != models.GroupOpen {
		return false, nil
	}
	stored.Items = g.Items
	return true, nil
}

func (m *mockDB) FinalizeGuard(_ context.Context, groupID string) (bool, error) {
	stored, ok := m.groups[groupID]
	if !ok || stored.Status != models.GroupOpen {
		return false, nil
	}
	stored.Status = models.GroupFinalized
	return true, nil
}

func (m *mockDB) CreateOrder(_ context.Context, ord *models.Order) error {
	m.orders = append(m.orders, ord)
	return nil
}

func (m *mockDB) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	r, ok := m.restaurants[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return r, nil
}

func (m *mockDB) GetMenuItem(_ context.Context, restaurantID, itemID string) (*models.MenuItem, error) {
	item, ok := m.menuItems[itemID]
	if !ok || item.RestaurantID != restaurantID {
		return nil, errors.New("no rows")
	}
	return item, nil
}

func (m *mockDB) GetSettings(_ context.Context) (*models.SystemSettings, error) {
	return &models.SystemSettings{TaxRate: 5, DeliveryFee: 5, CommissionRate: 10}, nil
}

type mockNotifier struct {
	rooms []string
}

func (m *mockNotifier) Emit(room, _ string, _ interface{}) {
	m.rooms = append(m.rooms, room)
}

func newTestService(db *mockDB) (*Service, *mockNotifier) {
	notifier := &mockNotifier{}
	return NewService(db, notifier, logger.NewLogger()), notifier
}

func member(id string) *auth.Claims {
	return &auth.Claims{UserID: id, Role: models.RoleCustomer}
}

func TestGroupLifecycleTwoMembers(t *testing.T) {
	db := newMockDB()
	db.menuItems["pizza"] = &models.MenuItem{ID: "pizza", RestaurantID: "rest-1", Name: "Pizza", Price: 12, IsAvailable: true}
	db.menuItems["salad"] = &models.MenuItem{ID: "salad", RestaurantID: "rest-1", Name: "Salad", Price: 8, IsAvailable: true}
	svc, _ := newTestService(db)
	ctx := context.Background()

	creator := member("alice")
	g, err := svc.Create(ctx, creator, CreateInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: &models.Address{Street: "1 Main St"},
	})
	require.NoError(t, err)
	assert.Len(t, g.InviteCode, 6)
	assert.Equal(t, []string{"alice"}, g.Members)

	// Second member joins by invite code.
	joiner := member("bob")
	joined, err := svc.Join(ctx, joiner, g.InviteCode)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, joined.Members)

	_, err = svc.AddItem(ctx, creator, g.ID, AddItemInput{ItemID: "pizza", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, joiner, g.ID, AddItemInput{ItemID: "salad", Quantity: 1})
	require.NoError(t, err)

	ord, err := svc.Finalize(ctx, creator, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, ord.GroupID)
	assert.Len(t, ord.Items, 2, "one order line per contributed entry")
	assert.Equal(t, "alice", ord.UserID)
	assert.Equal(t, 20.00, ord.Subtotal)
	assert.Equal(t, 1.00, ord.Tax)
	assert.Equal(t, 26.00, ord.Total)
	require.Len(t, db.orders, 1)
}

func TestJoinIsIdempotentForExistingMember(t *testing.T) {
	db := newMockDB()
	svc, _ := newTestService(db)
	ctx := context.Background()

	g, err := svc.Create(ctx, member("alice"), CreateInput{RestaurantID: "rest-1"})
	require.NoError(t, err)

	again, err := svc.Join(ctx, member("alice"), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, again.Members)
}

func TestAddItemGates(t *testing.T) {
	db := newMockDB()
	db.menuItems["pizza"] = &models.MenuItem{ID: "pizza", RestaurantID: "rest-1", Name: "Pizza", Price: 12, IsAvailable: true}
	svc, _ := newTestService(db)
	ctx := context.Background()

	g, err := svc.Create(ctx, member("alice"), CreateInput{RestaurantID: "rest-1"})
	require.NoError(t, err)

	// Non-members may not contribute.
	_, err = svc.AddItem(ctx, member("mallory"), g.ID, AddItemInput{ItemID: "pizza"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	// Unknown items are rejected.
	_, err = svc.AddItem(ctx, member("alice"), g.ID, AddItemInput{ItemID: "ghost"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// A finalized group accepts nothing.
	db.groups[g.ID].Status = models.GroupFinalized
	_, err = svc.AddItem(ctx, member("alice"), g.ID, AddItemInput{ItemID: "pizza"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))
}

func TestFinalizeExactlyOnce(t *testing.T) {
	db := newMockDB()
	db.menuItems["pizza"] = &models.MenuItem{ID: "pizza", RestaurantID: "rest-1", Name: "Pizza", Price: 12, IsAvailable: true}
	svc, _ := newTestService(db)
	ctx := context.Background()

	creator := member("alice")
	g, err := svc.Create(ctx, creator, CreateInput{RestaurantID: "rest-1"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, creator, g.ID, AddItemInput{ItemID: "pizza"})
	require.NoError(t, err)

	// Only the creator may finalize.
	_, err = svc.Finalize(ctx, member("bob"), g.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Finalize(ctx, creator, g.ID)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, creator, g.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))
	assert.Len(t, db.orders, 1, "double finalize must not create a second order")
}

func TestFinalizeEmptyGroup(t *testing.T) {
	db := newMockDB()
	svc, _ := newTestService(db)
	ctx := context.Background()

	g, err := svc.Create(ctx, member("alice"), CreateInput{RestaurantID: "rest-1"})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, member("alice"), g.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
