package payment

import (
	"context"
	"fmt"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/realtime"
)

// Provider is the slice of the payment API this service drives.
type Provider interface {
	InitializeTransaction(ctx context.Context, email string, amount float64, metadata map[string]interface{}) (*InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
}

// OrderDB is the order surface payments need: load and the exactly-once
// pending -> paid flip.
type OrderDB interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	MarkPaidIfPending(ctx context.Context, orderID string) (bool, error)
}

// Accruer posts the restaurant's earning once payment is confirmed.
type Accruer interface {
	AccrueRestaurantEarning(ctx context.Context, ord *models.Order) error
}

type Notifier interface {
	Emit(room, event string, payload interface{})
}

// Publisher mirrors payment confirmations onto the event bus.
type Publisher interface {
	PublishPaymentEvent(ctx context.Context, ord *models.Order, status string) error
}

type Service struct {
	provider Provider
	orders   OrderDB
	ledger   Accruer
	notifier Notifier
	events   Publisher
	log      *logger.Logger
}

func NewService(provider Provider, orders OrderDB, ledger Accruer, notifier Notifier, events Publisher, log *logger.Logger) *Service {
	return &Service{provider: provider, orders: orders, ledger: ledger, notifier: notifier, events: events, log: log}
}

// Initialize opens a provider checkout session for the order's total.
func (s *Service) Initialize(ctx context.Context, actor *auth.Claims, orderID string) (*InitializeResult, error) {
	ord, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}
	if ord.UserID != actor.UserID && !actor.IsSuper() {
		return nil, apperr.Forbidden("not authorized to pay for this order")
	}
	if ord.PaymentStatus == models.PaymentPaid {
		return nil, apperr.Conflict("order is already paid")
	}

	result, err := s.provider.InitializeTransaction(ctx, actor.Email, ord.Total, map[string]interface{}{
		"order_id": ord.ID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("PAYMENT", fmt.Sprintf("Checkout for order %s: reference %s", ord.ID, result.Reference))
	return result, nil
}

// Verify confirms a checkout with the provider and, exactly once per order,
// marks it paid and posts the restaurant earning. The pending -> paid
// conditional flip is what makes repeated verification calls safe.
func (s *Service) Verify(ctx context.Context, reference string) (*models.Order, error) {
	result, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, apperr.Validation(fmt.Sprintf("payment not successful: %s", result.Status))
	}

	orderID, _ := result.Metadata["order_id"].(string)
	if orderID == "" {
		return nil, apperr.Validation("payment carries no order reference")
	}

	flipped, err := s.orders.MarkPaidIfPending(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("marking order paid: %w", err)
	}

	ord, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}

	if !flipped {
		// Already confirmed by an earlier verify or webhook.
		return ord, nil
	}

	s.log.LogOrder("PAID", ord.ID, fmt.Sprintf("reference %s, total %.2f", reference, ord.Total))

	// Accounting must never block payment confirmation.
	if err := s.ledger.AccrueRestaurantEarning(ctx, ord); err != nil {
		s.log.Error("LEDGER", fmt.Sprintf("Restaurant earning for order %s failed: %v", ord.ID, err))
	}

	payload := map[string]interface{}{
		"type":  "paid",
		"order": ord,
	}
	s.notifier.Emit(realtime.UserRoom(ord.UserID), realtime.EventPaymentUpdate, payload)
	s.notifier.Emit(realtime.RestaurantRoom(ord.RestaurantID), realtime.EventPaymentUpdate, payload)

	if s.events != nil {
		if err := s.events.PublishPaymentEvent(ctx, ord, "paid"); err != nil {
			s.log.Warn("KAFKA", fmt.Sprintf("Publishing payment for order %s failed: %v", ord.ID, err))
		}
	}

	return ord, nil
}
