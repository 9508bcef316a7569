package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/pricing"
	"quickbite/internal/realtime"
)

// DB is the order-side storage surface the service consumes.
type DB interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, ord *models.Order) error
	UpdateStatusGuard(ctx context.Context, orderID, from, to string) (bool, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrdersForRestaurant(ctx context.Context, restaurantID string) ([]models.Order, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenuItems(ctx context.Context, restaurantID string, ids []string) ([]models.MenuItem, error)
	GetSettings(ctx context.Context) (*models.SystemSettings, error)
}

// Notifier fans an event out to a room. Emit never blocks the caller and
// failures are invisible here.
type Notifier interface {
	Emit(room, event string, payload interface{})
}

// Ledger posts the driver earning when an order reaches delivered.
type Ledger interface {
	AccrueDriverEarning(ctx context.Context, ord *models.Order) error
}

// Publisher mirrors status changes onto the event bus for downstream
// consumers (analytics, push dispatch).
type Publisher interface {
	PublishOrderStatus(ctx context.Context, ord *models.Order, previous string) error
	PublishPush(ctx context.Context, userIDs []string, title, body string) error
}

type Service struct {
	db       DB
	notifier Notifier
	ledger   Ledger
	events   Publisher
	log      *logger.Logger
}

func NewService(db DB, notifier Notifier, ledger Ledger, events Publisher, log *logger.Logger) *Service {
	return &Service{db: db, notifier: notifier, ledger: ledger, events: events, log: log}
}

// CreateInput is the shape of a cart submitted for ordering.
type CreateInput struct {
	RestaurantID    string             `json:"restaurantId"`
	Items           []CreateItemInput  `json:"items"`
	Type            string             `json:"type"`
	Schedule        *time.Time         `json:"schedule,omitempty"`
	PickupAddress   *models.Address    `json:"pickupAddress,omitempty"`
	DeliveryAddress *models.Address    `json:"deliveryAddress,omitempty"`
}

type CreateItemInput struct {
	ItemID   string            `json:"itemId"`
	Quantity int               `json:"quantity"`
	Choice   models.ItemChoice `json:"choice"`
}

// Create validates the cart, prices it from the live catalog and persists the
// order. Prices are snapshotted onto the order so later menu edits never
// change history.
func (s *Service) Create(ctx context.Context, actor *auth.Claims, in CreateInput) (*models.Order, error) {
	if in.RestaurantID == "" || len(in.Items) == 0 {
		return nil, apperr.Validation("restaurantId and items are required")
	}

	orderType := in.Type
	if orderType == "" {
		orderType = models.TypeDelivery
	}
	if orderType != models.TypeDelivery && orderType != models.TypePickup {
		return nil, apperr.Validation("type must be delivery or pickup")
	}
	if orderType == models.TypeDelivery && in.DeliveryAddress == nil {
		return nil, apperr.Validation("delivery orders require a delivery address")
	}

	if _, err := s.db.GetRestaurant(ctx, in.RestaurantID); err != nil {
		return nil, apperr.Validation("restaurant not found")
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ItemID == "" {
			return nil, apperr.Validation("every item needs an itemId")
		}
		ids = append(ids, it.ItemID)
	}

	menuItems, err := s.db.GetMenuItems(ctx, in.RestaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading menu items: %w", err)
	}
	byID := make(map[string]*models.MenuItem, len(menuItems))
	for i := range menuItems {
		byID[menuItems[i].ID] = &menuItems[i]
	}

	lines := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		menuItem, ok := byID[it.ItemID]
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("item %s is not on this restaurant's menu", it.ItemID))
		}
		if !menuItem.IsAvailable {
			return nil, apperr.Validation(fmt.Sprintf("item %s is currently unavailable", menuItem.Name))
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, models.OrderItem{
			ItemID:   menuItem.ID,
			Name:     menuItem.Name,
			Quantity: qty,
			Price:    pricing.CalcItemPrice(menuItem, it.Choice),
			Choice:   it.Choice,
		})
	}

	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	deliveryFee := settings.DeliveryFee
	if orderType == models.TypePickup {
		deliveryFee = 0
	}
	costs := pricing.CalculateOrderCosts(lines, settings.TaxRate, deliveryFee)

	status := models.StatusPending
	if in.Schedule != nil && in.Schedule.After(time.Now()) {
		status = models.StatusScheduled
	}

	ord := &models.Order{
		ID:              uuid.NewString(),
		UserID:          actor.UserID,
		RestaurantID:    in.RestaurantID,
		Items:           lines,
		Subtotal:        costs.Subtotal,
		Tax:             costs.Tax,
		DeliveryFee:     costs.DeliveryFee,
		Total:           costs.Total,
		Status:          status,
		PaymentStatus:   models.PaymentPending,
		Type:            orderType,
		Schedule:        in.Schedule,
		PickupAddress:   in.PickupAddress,
		DeliveryAddress: in.DeliveryAddress,
		CreatedAt:       time.Now(),
	}

	if err := s.db.CreateOrder(ctx, ord); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	s.log.LogOrder("CREATED", ord.ID, fmt.Sprintf("restaurant %s, total %.2f", ord.RestaurantID, ord.Total))

	payload := statusPayload("created", ord)
	s.notifier.Emit(realtime.RestaurantRoom(ord.RestaurantID), realtime.EventOrdersUpdate, payload)
	s.notifier.Emit(realtime.UserRoom(ord.UserID), realtime.EventOrdersUpdate, payload)
	s.publish(ctx, ord, "")

	return ord, nil
}

// UpdateStatus drives the order status state machine. The new status is
// persisted with a compare-and-swap on the current one, so a concurrent
// transition loses cleanly instead of overwriting.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.Claims, orderID, next string) (*models.Order, error) {
	ord, err := s.db.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}

	if err := Authorize(actor, ord, next); err != nil {
		return nil, err
	}

	// Requesting the current status again is a no-op success.
	if next == ord.Status {
		return ord, nil
	}

	if err := CheckTransition(ord.Status, next); err != nil {
		return nil, err
	}

	previous := ord.Status
	updated, err := s.db.UpdateStatusGuard(ctx, ord.ID, previous, next)
	if err != nil {
		return nil, fmt.Errorf("persisting status: %w", err)
	}
	if !updated {
		return nil, apperr.Conflict("order status changed concurrently, please retry")
	}

	ord.Status = next
	ord.UpdatedAt = time.Now()

	s.log.LogOrder("STATUS", ord.ID, fmt.Sprintf("%s -> %s by %s", previous, next, actor.UserID))

	if next == models.StatusDelivered && ord.DriverID != "" && ord.DeliveryFee > 0 {
		// Accounting must never block fulfillment.
		if err := s.ledger.AccrueDriverEarning(ctx, ord); err != nil {
			s.log.Error("LEDGER", fmt.Sprintf("Driver earning for order %s failed: %v", ord.ID, err))
		}
	}

	payload := statusPayload("status_changed", ord)
	s.notifier.Emit(realtime.OrderRoom(ord.ID), realtime.EventOrdersUpdate, payload)
	s.notifier.Emit(realtime.UserRoom(ord.UserID), realtime.EventOrdersUpdate, payload)
	s.notifier.Emit(realtime.RestaurantRoom(ord.RestaurantID), realtime.EventOrdersUpdate, payload)
	s.publish(ctx, ord, previous)
	s.pushNotify(ctx, ord, next)

	return ord, nil
}

// GetOrder is access-gated to the parties on the order.
func (s *Service) GetOrder(ctx context.Context, actor *auth.Claims, orderID string) (*models.Order, error) {
	ord, err := s.db.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}
	if !canView(actor, ord) {
		return nil, apperr.Forbidden("not authorized to view this order")
	}
	return ord, nil
}

func (s *Service) ListMine(ctx context.Context, actor *auth.Claims) ([]models.Order, error) {
	return s.db.ListOrdersForUser(ctx, actor.UserID)
}

// ListForUser returns another user's order history. Staff and super may look
// up any user, everyone else only themselves.
func (s *Service) ListForUser(ctx context.Context, actor *auth.Claims, userID string) ([]models.Order, error) {
	if actor.UserID != userID && !actor.IsSuper() && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("not authorized to view this user's orders")
	}
	return s.db.ListOrdersForUser(ctx, userID)
}

func (s *Service) ListForRestaurant(ctx context.Context, actor *auth.Claims, restaurantID string) ([]models.Order, error) {
	if !actor.IsSuper() && !actor.IsStaffOf(restaurantID) {
		return nil, apperr.Forbidden("not authorized to view this restaurant's orders")
	}
	return s.db.ListOrdersForRestaurant(ctx, restaurantID)
}

func canView(actor *auth.Claims, ord *models.Order) bool {
	return actor.IsSuper() ||
		actor.UserID == ord.UserID ||
		(ord.DriverID != "" && actor.UserID == ord.DriverID) ||
		actor.IsStaffOf(ord.RestaurantID)
}

func (s *Service) publish(ctx context.Context, ord *models.Order, previous string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderStatus(ctx, ord, previous); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("Publishing status for order %s failed: %v", ord.ID, err))
	}
}

// pushNotify queues a push notification for the customer. The dispatch worker
// resolves the stored device token.
func (s *Service) pushNotify(ctx context.Context, ord *models.Order, status string) {
	if s.events == nil {
		return
	}
	body := fmt.Sprintf("Your order is now %s", status)
	if err := s.events.PublishPush(ctx, []string{ord.UserID}, "Order update", body); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("Push dispatch for order %s failed: %v", ord.ID, err))
	}
}

func statusPayload(eventType string, ord *models.Order) map[string]interface{} {
	return map[string]interface{}{
		"type":  eventType,
		"order": ord,
	}
}
