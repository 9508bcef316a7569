package group

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
	"quickbite/internal/utils"
)

// DB is the group-side storage surface.
type DB interface {
	CreateGroup(ctx context.Context, g *models.GroupOrder) error
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	GetGroupByID(ctx context.Context, id string) (*models.GroupOrder, error)
	GetGroupByCode(ctx context.Context, code string) (*models.GroupOrder, error)
	UpdateMembers(ctx context.Context, g *models.GroupOrder) (bool, error)
	UpdateItems(ctx context.Context, g *models.GroupOrder) (bool, error)
	FinalizeGuard(ctx context.Context, groupID string) (bool, error)
	CreateOrder(ctx context.Context, ord *models.Order) error
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenuItem(ctx context.Context, restaurantID, itemID string) (*models.MenuItem, error)
	GetSettings(ctx context.Context) (*models.SystemSettings, error)
}

type Notifier interface {
	Emit(room, event string, payload interface{})
}

type Service struct {
	db       DB
	notifier Notifier
	log      *logger.Logger
}

func NewService(db DB, notifier Notifier, log *logger.Logger) *Service {
	return &Service{db: db, notifier: notifier, log: log}
}

type CreateInput struct {
	RestaurantID    string          `json:"restaurantId"`
	Type            string          `json:"type"`
	Schedule        *time.Time      `json:"schedule,omitempty"`
	PickupAddress   *models.Address `json:"pickupAddress,omitempty"`
	DeliveryAddress *models.Address `json:"deliveryAddress,omitempty"`
}

// Create opens a shared cart with the actor as creator and first member.
func (s *Service) Create(ctx context.Context, actor *auth.Claims, in CreateInput) (*models.GroupOrder, error) {
	if in.RestaurantID == "" {
		return nil, apperr.Validation("restaurantId is required")
	}
	if _, err := s.db.GetRestaurant(ctx, in.RestaurantID); err != nil {
		return nil, apperr.Validation("restaurant not found")
	}

	groupType := in.Type
	if groupType == "" {
		groupType = models.TypeDelivery
	}

	code, err := s.freshInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	g := &models.GroupOrder{
		ID:              uuid.NewString(),
		RestaurantID:    in.RestaurantID,
		CreatorID:       actor.UserID,
		InviteCode:      code,
		Members:         []string{actor.UserID},
		Items:           []models.GroupItem{},
		Status:          models.GroupOpen,
		Type:            groupType,
		Schedule:        in.Schedule,
		PickupAddress:   in.PickupAddress,
		DeliveryAddress: in.DeliveryAddress,
		CreatedAt:       time.Now(),
	}
	if err := s.db.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	s.log.Info("GROUP", fmt.Sprintf("Group %s created by %s, code %s", g.ID, actor.UserID, g.InviteCode))
	return g, nil
}

func (s *Service) freshInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := utils.GenerateInviteCode()
		exists, err := s.db.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique invite code")
}

// Join adds the actor to an open group, addressed by id or invite code.
func (s *Service) Join(ctx context.Context, actor *auth.Claims, idOrCode string) (*models.GroupOrder, error) {
	g, err := s.resolve(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupOpen {
		return nil, apperr.InvalidTransition("group is no longer open")
	}
	if g.HasMember(actor.UserID) {
		return g, nil
	}

	g.Members = append(g.Members, actor.UserID)
	g.UpdatedAt = time.Now()
	ok, err := s.db.UpdateMembers(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("joining group: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidTransition("group is no longer open")
	}

	s.emit(g, "member_joined")
	return g, nil
}

type AddItemInput struct {
	ItemID   string            `json:"itemId"`
	Quantity int               `json:"quantity"`
	Choice   models.ItemChoice `json:"choice"`
}

// AddItem appends a member's contribution, priced from the live menu.
func (s *Service) AddItem(ctx context.Context, actor *auth.Claims, groupID string, in AddItemInput) (*models.GroupOrder, error) {
	g, err := s.resolve(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(actor.UserID) {
		return nil, apperr.Forbidden("only group members may add items")
	}
	if g.Status != models.GroupOpen {
		return nil, apperr.InvalidTransition("group is no longer open")
	}

	menuItem, err := s.db.GetMenuItem(ctx, g.RestaurantID, in.ItemID)
	if err != nil {
		return nil, apperr.Validation("item is not on this restaurant's menu")
	}
	if !menuItem.IsAvailable {
		return nil, apperr.Validation(fmt.Sprintf("item %s is currently unavailable", menuItem.Name))
	}

	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}
	g.Items = append(g.Items, models.GroupItem{
		UserID:   actor.UserID,
		ItemID:   menuItem.ID,
		Name:     menuItem.Name,
		Quantity: qty,
		Price:    pricing.CalcItemPrice(menuItem, in.Choice),
		Choice:   in.Choice,
	})
	g.UpdatedAt = time.Now()

	ok, err := s.db.UpdateItems(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("adding item: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidTransition("group is no longer open")
	}

	s.emit(g, "item_added")
	return g, nil
}

// Finalize closes the group exactly once and materializes the shared cart
// into a single order owned by the creator. The open -> finalized flip is a
// conditional write, so a double finalize can never produce two orders.
func (s *Service) Finalize(ctx context.Context, actor *auth.Claims, groupID string) (*models.Order, error) {
	g, err := s.resolve(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != g.CreatorID && !actor.IsSuper() {
		return nil, apperr.Forbidden("only the group creator may finalize")
	}
	if len(g.Items) == 0 {
		return nil, apperr.Validation("cannot finalize an empty group")
	}

	flipped, err := s.db.FinalizeGuard(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("finalizing group: %w", err)
	}
	if !flipped {
		return nil, apperr.InvalidTransition("group already finalized")
	}

	lines := make([]models.OrderItem, 0, len(g.Items))
	for _, it := range g.Items {
		lines = append(lines, models.OrderItem{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
			Choice:   it.Choice,
		})
	}

	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	deliveryFee := settings.DeliveryFee
	if g.Type == models.TypePickup {
		deliveryFee = 0
	}
	costs := pricing.CalculateOrderCosts(lines, settings.TaxRate, deliveryFee)

	status := models.StatusPending
	if g.Schedule != nil && g.Schedule.After(time.Now()) {
		status = models.StatusScheduled
	}

	ord := &models.Order{
		ID:              uuid.NewString(),
		UserID:          g.CreatorID,
		RestaurantID:    g.RestaurantID,
		Items:           lines,
		Subtotal:        costs.Subtotal,
		Tax:             costs.Tax,
		DeliveryFee:     costs.DeliveryFee,
		Total:           costs.Total,
		Status:          status,
		PaymentStatus:   models.PaymentPending,
		Type:            g.Type,
		Schedule:        g.Schedule,
		PickupAddress:   g.PickupAddress,
		DeliveryAddress: g.DeliveryAddress,
		GroupID:         g.ID,
		CreatedAt:       time.Now(),
	}
	if err := s.db.CreateOrder(ctx, ord); err != nil {
		// The group stays finalized; re-running finalize will not create a
		// second order, the stuck group needs operator attention.
		s.log.Error("GROUP", fmt.Sprintf("Order for finalized group %s failed: %v", g.ID, err))
		return nil, fmt.Errorf("creating group order: %w", err)
	}

	g.Status = models.GroupFinalized
	s.log.LogOrder("GROUP_FINALIZED", ord.ID, fmt.Sprintf("group %s, %d items, total %.2f", g.ID, len(ord.Items), ord.Total))

	payload := map[string]interface{}{
		"type":  "finalized",
		"group": g,
		"order": ord,
	}
	s.notifier.Emit(realtime.GroupRoom(g.ID), realtime.EventGroupUpdate, payload)
	s.notifier.Emit(realtime.RestaurantRoom(g.RestaurantID), realtime.EventOrdersUpdate, payload)

	return ord, nil
}

// Get returns the group to its members and staff.
func (s *Service) Get(ctx context.Context, actor *auth.Claims, idOrCode string) (*models.GroupOrder, error) {
	g, err := s.resolve(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(actor.UserID) && !actor.IsSuper() && !actor.IsStaffOf(g.RestaurantID) {
		return nil, apperr.Forbidden("not a member of this group")
	}
	return g, nil
}

// resolve looks a group up by id first, then by invite code.
func (s *Service) resolve(ctx context.Context, idOrCode string) (*models.GroupOrder, error) {
	if idOrCode == "" {
		return nil, apperr.Validation("group id or invite code is required")
	}
	if g, err := s.db.GetGroupByID(ctx, idOrCode); err == nil {
		return g, nil
	}
	g, err := s.db.GetGroupByCode(ctx, idOrCode)
	if err != nil {
		return nil, apperr.NotFound("group not found")
	}
	return g, nil
}

func (s *Service) emit(g *models.GroupOrder, eventType string) {
	s.notifier.Emit(realtime.GroupRoom(g.ID), realtime.EventGroupUpdate, map[string]interface{}{
		"type":  eventType,
		"group": g,
	})
}
