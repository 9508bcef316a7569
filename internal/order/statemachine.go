package order

import (
	"fmt"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/models"
)

// transitions is the legal edge set of the order status graph. A status with
// no entry is terminal.
var transitions = map[string][]string{
	models.StatusPending:        {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
	models.StatusScheduled:      {models.StatusPending, models.StatusCancelled},
	models.StatusAccepted:       {models.StatusPreparing, models.StatusReadyForPickup, models.StatusCancelled},
	models.StatusPreparing:      {models.StatusReadyForPickup, models.StatusCancelled},
	models.StatusReadyForPickup: {models.StatusPickedUp, models.StatusCancelled},
	models.StatusPickedUp:       {models.StatusDelivered},
}

// CanTransition reports whether the table allows current -> next.
func CanTransition(current, next string) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// cancellableBy is the latest stage at which a non-super actor may still cancel.
func cancellableFrom(status string) bool {
	switch status {
	case models.StatusPending, models.StatusScheduled, models.StatusAccepted:
		return true
	}
	return false
}

// Authorize is the single capability check for status transitions. It is
// evaluated before the transition table, so an actor who may never set the
// requested status gets Forbidden even when the edge itself would be legal.
func Authorize(actor *auth.Claims, ord *models.Order, next string) error {
	if actor.IsSuper() {
		return nil
	}

	switch next {
	case models.StatusCancelled:
		if actor.UserID != ord.UserID && !actor.IsStaffOf(ord.RestaurantID) {
			return apperr.Forbidden("only the customer or restaurant staff may cancel this order")
		}
		if !cancellableFrom(ord.Status) {
			return apperr.Forbidden(fmt.Sprintf("order can no longer be cancelled (status %s)", ord.Status))
		}
		return nil

	case models.StatusPending, models.StatusAccepted, models.StatusPreparing,
		models.StatusReadyForPickup, models.StatusRejected:
		if !actor.IsStaffOf(ord.RestaurantID) {
			return apperr.Forbidden("only restaurant staff may set this status")
		}
		return nil

	case models.StatusPickedUp, models.StatusDelivered:
		if ord.DriverID == "" || actor.UserID != ord.DriverID {
			return apperr.Forbidden("only the assigned driver may set this status")
		}
		return nil
	}

	return apperr.Forbidden("not authorized for this status change")
}

// CheckTransition validates the edge after authorization has passed.
func CheckTransition(current, next string) error {
	if !CanTransition(current, next) {
		return apperr.InvalidTransition(fmt.Sprintf("cannot change status from %s to %s", current, next))
	}
	return nil
}
