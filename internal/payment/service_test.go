package payment

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

type mockProvider struct {
	initResult   *InitializeResult
	verifyResult *VerifyResult
	verifyErr    error
}

func (m *mockProvider) InitializeTransaction(_ context.Context, _ string, _ float64, _ map[string]interface{}) (*InitializeResult, error) {
	return m.initResult, nil
}

func (m *mockProvider) VerifyTransaction(_ context.Context, _ string) (*VerifyResult, error) {
	return m.verifyResult, m.verifyErr
}

type mockOrderDB struct {
	orders map[string]*models.Order
}

func (m *mockOrderDB) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	ord, ok := m.orders[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return ord, nil
}

func (m *mockOrderDB) MarkPaidIfPending(_ context.Context, orderID string) (bool, error) {
	ord, ok := m.orders[orderID]
	if !ok || ord.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	ord.PaymentStatus = models.PaymentPaid
	return true, nil
}

type mockAccruer struct {
	calls []string
	err   error
}

func (m *mockAccruer) AccrueRestaurantEarning(_ context.Context, ord *models.Order) error {
	m.calls = append(m.calls, ord.ID)
	return m.err
}

type nopNotifier struct{}

func (nopNotifier) Emit(_, _ string, _ interface{}) {}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:            "order-1",
		UserID:        "customer-1",
		RestaurantID:  "rest-1",
		Total:         30.20,
		PaymentStatus: models.PaymentPending,
	}
}

func TestInitializeGates(t *testing.T) {
	orders := &mockOrderDB{orders: map[string]*models.Order{"order-1": pendingOrder()}}
	provider := &mockProvider{initResult: &InitializeResult{Reference: "ref-1", AuthorizationURL: "https://pay.example/ref-1"}}
	svc := NewService(provider, orders, &mockAccruer{}, nopNotifier{}, nil, logger.NewLogger())
	ctx := context.Background()

	_, err := svc.Initialize(ctx, &auth.Claims{UserID: "stranger"}, "order-1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Initialize(ctx, &auth.Claims{UserID: "customer-1"}, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	result, err := svc.Initialize(ctx, &auth.Claims{UserID: "customer-1"}, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", result.Reference)

	orders.orders["order-1"].PaymentStatus = models.PaymentPaid
	_, err = svc.Initialize(ctx, &auth.Claims{UserID: "customer-1"}, "order-1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestVerifyAccruesExactlyOnce(t *testing.T) {
	orders := &mockOrderDB{orders: map[string]*models.Order{"order-1": pendingOrder()}}
	provider := &mockProvider{verifyResult: &VerifyResult{
		Status:   "success",
		Amount:   3020,
		Metadata: map[string]interface{}{"order_id": "order-1"},
	}}
	accruer := &mockAccruer{}
	svc := NewService(provider, orders, accruer, nopNotifier{}, nil, logger.NewLogger())
	ctx := context.Background()

	ord, err := svc.Verify(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, ord.PaymentStatus)
	assert.Equal(t, []string{"order-1"}, accruer.calls)

	// A second verify for the same order confirms but must not accrue again.
	ord, err = svc.Verify(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, ord.PaymentStatus)
	assert.Len(t, accruer.calls, 1)
}

func TestVerifyRejectsUnsuccessfulPayment(t *testing.T) {
	orders := &mockOrderDB{orders: map[string]*models.Order{"order-1": pendingOrder()}}
	provider := &mockProvider{verifyResult: &VerifyResult{
		Status:   "abandoned",
		Metadata: map[string]interface{}{"order_id": "order-1"},
	}}
	accruer := &mockAccruer{}
	svc := NewService(provider, orders, accruer, nopNotifier{}, nil, logger.NewLogger())

	_, err := svc.Verify(context.Background(), "ref-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, accruer.calls)
	assert.Equal(t, models.PaymentPending, orders.orders["order-1"].PaymentStatus)
}

func TestVerifyMissingOrderReference(t *testing.T) {
	provider := &mockProvider{verifyResult: &VerifyResult{Status: "success"}}
	svc := NewService(provider, &mockOrderDB{orders: map[string]*models.Order{}}, &mockAccruer{}, nopNotifier{}, nil, logger.NewLogger())

	_, err := svc.Verify(context.Background(), "ref-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerifyAccrualFailureDoesNotFailConfirmation(t *testing.T) {
	orders := &mockOrderDB{orders: map[string]*models.Order{"order-1": pendingOrder()}}
	provider := &mockProvider{verifyResult: &VerifyResult{
		Status:   "success",
		Metadata: map[string]interface{}{"order_id": "order-1"},
	}}
	accruer := &mockAccruer{err: errors.New("ledger down")}
	svc := NewService(provider, orders, accruer, nopNotifier{}, nil, logger.NewLogger())

	ord, err := svc.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, ord.PaymentStatus)
}
