package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/models"
)

var allStatuses = []string{
	models.StatusPending, models.StatusScheduled, models.StatusAccepted,
	models.StatusPreparing, models.StatusReadyForPickup, models.StatusPickedUp,
	models.StatusDelivered, models.StatusRejected, models.StatusCancelled,
}

func TestTransitionTable(t *testing.T) {
	allowed := map[string]map[string]bool{
		models.StatusPending:        {models.StatusAccepted: true, models.StatusRejected: true, models.StatusCancelled: true},
		models.StatusScheduled:      {models.StatusPending: true, models.StatusCancelled: true},
		models.StatusAccepted:       {models.StatusPreparing: true, models.StatusReadyForPickup: true, models.StatusCancelled: true},
		models.StatusPreparing:      {models.StatusReadyForPickup: true, models.StatusCancelled: true},
		models.StatusReadyForPickup: {models.StatusPickedUp: true, models.StatusCancelled: true},
		models.StatusPickedUp:       {models.StatusDelivered: true},
		models.StatusDelivered:      {},
		models.StatusRejected:       {},
		models.StatusCancelled:      {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := CanTransition(from, to)
			want := allowed[from][to]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []string{models.StatusDelivered, models.StatusRejected, models.StatusCancelled} {
		assert.True(t, models.IsTerminal(from))
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s must not allow %s", from, to)
		}
	}
}

func testOrder() *models.Order {
	return &models.Order{
		ID:           "order-1",
		UserID:       "customer-1",
		RestaurantID: "rest-1",
		DriverID:     "driver-1",
		Status:       models.StatusPending,
	}
}

func TestAuthorizeCustomerCancel(t *testing.T) {
	customer := &auth.Claims{UserID: "customer-1", Role: models.RoleCustomer}
	ord := testOrder()

	assert.NoError(t, Authorize(customer, ord, models.StatusCancelled))

	// Other customers may not cancel.
	stranger := &auth.Claims{UserID: "someone-else", Role: models.RoleCustomer}
	err := Authorize(stranger, ord, models.StatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAuthorizeCancelStageLimit(t *testing.T) {
	customer := &auth.Claims{UserID: "customer-1", Role: models.RoleCustomer}
	ord := testOrder()
	ord.Status = models.StatusPickedUp

	err := Authorize(customer, ord, models.StatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	// The super role is exempt from the stage limit.
	super := &auth.Claims{UserID: "root", Role: models.RoleSuperAdmin}
	assert.NoError(t, Authorize(super, ord, models.StatusCancelled))
}

func TestAuthorizeRestaurantStatuses(t *testing.T) {
	ord := testOrder()
	staff := &auth.Claims{UserID: "staff-1", Role: models.RoleAdmin, RestaurantID: "rest-1"}
	otherStaff := &auth.Claims{UserID: "staff-2", Role: models.RoleAdmin, RestaurantID: "rest-2"}
	customer := &auth.Claims{UserID: "customer-1", Role: models.RoleCustomer}

	for _, status := range []string{models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup, models.StatusRejected} {
		assert.NoError(t, Authorize(staff, ord, status), "staff should set %s", status)
		assert.True(t, apperr.Is(Authorize(otherStaff, ord, status), apperr.KindForbidden),
			"staff of another restaurant must not set %s", status)
		assert.True(t, apperr.Is(Authorize(customer, ord, status), apperr.KindForbidden),
			"customer must not set %s", status)
	}
}

func TestAuthorizeDriverStatuses(t *testing.T) {
	ord := testOrder()
	driver := &auth.Claims{UserID: "driver-1", Role: models.RoleDriver}
	otherDriver := &auth.Claims{UserID: "driver-2", Role: models.RoleDriver}

	for _, status := range []string{models.StatusPickedUp, models.StatusDelivered} {
		assert.NoError(t, Authorize(driver, ord, status))
		assert.True(t, apperr.Is(Authorize(otherDriver, ord, status), apperr.KindForbidden))
	}

	// An unassigned order has no driver who may progress it.
	ord.DriverID = ""
	err := Authorize(driver, ord, models.StatusPickedUp)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAuthorizeSuperBypassesAllGates(t *testing.T) {
	super := &auth.Claims{UserID: "root", Role: models.RoleSuperAdmin}
	ord := testOrder()
	for _, status := range allStatuses {
		assert.NoError(t, Authorize(super, ord, status))
	}
}

func TestCheckTransitionErrorKind(t *testing.T) {
	err := CheckTransition(models.StatusDelivered, models.StatusPending)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))
	assert.NoError(t, CheckTransition(models.StatusPending, models.StatusAccepted))
}
