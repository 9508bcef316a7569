package delivery

import (
	"context"
	"fmt"

	"quickbite/internal/apperr"
	"quickbite/internal/auth"
	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/realtime"
)

// DB is the delivery-side storage surface.
type DB interface {
	ClaimOrder(ctx context.Context, orderID, driverID string) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListAvailable(ctx context.Context) ([]models.Order, error)
	ListForDriver(ctx context.Context, driverID string) ([]models.Order, error)
	ListActiveForDriver(ctx context.Context, driverID string) ([]models.Order, error)
	HasActiveOrderWith(ctx context.Context, userID, driverID string) (bool, error)
	UpsertLocation(ctx context.Context, loc *models.DriverLocation) error
	GetLocation(ctx context.Context, driverID string) (*models.DriverLocation, error)
}

type Notifier interface {
	Emit(room, event string, payload interface{})
}

// Publisher mirrors delivery events onto the event bus.
type Publisher interface {
	PublishDeliveryEvent(ctx context.Context, ord *models.Order, event string) error
}

type Service struct {
	db       DB
	notifier Notifier
	events   Publisher
	log      *logger.Logger
}

func NewService(db DB, notifier Notifier, events Publisher, log *logger.Logger) *Service {
	return &Service{db: db, notifier: notifier, events: events, log: log}
}

// AcceptOrder claims an unassigned delivery order for the driver. The claim
// is a conditional write on the order row, so a lost race surfaces as
// Conflict rather than a silent overwrite.
func (s *Service) AcceptOrder(ctx context.Context, actor *auth.Claims, driverID, orderID string) (*models.Order, error) {
	if actor.UserID != driverID {
		return nil, apperr.Forbidden("drivers may only accept orders for themselves")
	}

	ord, err := s.db.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}
	if ord.Type != models.TypeDelivery {
		return nil, apperr.Validation("only delivery orders can be accepted by a driver")
	}

	claimed, err := s.db.ClaimOrder(ctx, orderID, driverID)
	if err != nil {
		return nil, fmt.Errorf("claiming order: %w", err)
	}
	if !claimed {
		return nil, apperr.Conflict("order already accepted by another driver")
	}

	ord.DriverID = driverID
	ord.Status = models.StatusAccepted

	s.log.LogOrder("CLAIMED", ord.ID, fmt.Sprintf("driver %s", driverID))

	payload := map[string]interface{}{
		"type":  "accepted",
		"order": ord,
	}
	s.notifier.Emit(realtime.RestaurantRoom(ord.RestaurantID), realtime.EventDeliveryUpdate, payload)
	s.notifier.Emit(realtime.UserRoom(ord.UserID), realtime.EventDeliveryUpdate, payload)
	s.notifier.Emit(realtime.OrderRoom(ord.ID), realtime.EventDeliveryUpdate, payload)

	if s.events != nil {
		if err := s.events.PublishDeliveryEvent(ctx, ord, "accepted"); err != nil {
			s.log.Warn("KAFKA", fmt.Sprintf("Publishing claim for order %s failed: %v", ord.ID, err))
		}
	}

	return ord, nil
}

// AvailableOrders lists unassigned delivery orders oldest first.
func (s *Service) AvailableOrders(ctx context.Context, actor *auth.Claims) ([]models.Order, error) {
	if actor.Role != models.RoleDriver && !actor.IsSuper() {
		return nil, apperr.Forbidden("only drivers may browse available orders")
	}
	return s.db.ListAvailable(ctx)
}

func (s *Service) DriverOrders(ctx context.Context, actor *auth.Claims, driverID string) ([]models.Order, error) {
	if actor.UserID != driverID && !actor.IsSuper() && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("not authorized to view this driver's orders")
	}
	return s.db.ListForDriver(ctx, driverID)
}

// UpdateLocation stores the driver's position and fans it out to the tracking
// room of every order currently active for that driver.
func (s *Service) UpdateLocation(ctx context.Context, actor *auth.Claims, driverID string, lat, lng float64) error {
	if actor.UserID != driverID && !actor.IsSuper() {
		return apperr.Forbidden("drivers may only report their own location")
	}

	loc := &models.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	if err := s.db.UpsertLocation(ctx, loc); err != nil {
		return fmt.Errorf("storing location: %w", err)
	}

	active, err := s.db.ListActiveForDriver(ctx, driverID)
	if err != nil {
		s.log.Warn("DELIVERY", fmt.Sprintf("Active-order lookup for driver %s failed: %v", driverID, err))
		return nil
	}

	payload := map[string]interface{}{
		"type":     "location",
		"driverId": driverID,
		"lat":      lat,
		"lng":      lng,
	}
	for _, ord := range active {
		s.notifier.Emit(realtime.OrderRoom(ord.ID), realtime.EventDriverLocation, payload)
	}
	return nil
}

// GetLocation is access-gated: the driver, staff and the super role always;
// a customer only while they have an in-flight order with this driver.
func (s *Service) GetLocation(ctx context.Context, actor *auth.Claims, driverID string) (*models.DriverLocation, error) {
	allowed := actor.UserID == driverID || actor.IsSuper() || actor.Role == models.RoleAdmin
	if !allowed {
		has, err := s.db.HasActiveOrderWith(ctx, actor.UserID, driverID)
		if err != nil {
			return nil, fmt.Errorf("checking order relation: %w", err)
		}
		allowed = has
	}
	if !allowed {
		return nil, apperr.Forbidden("not authorized to view this driver's location")
	}

	loc, err := s.db.GetLocation(ctx, driverID)
	if err != nil {
		return nil, apperr.NotFound("no location reported for this driver")
	}
	return loc, nil
}
