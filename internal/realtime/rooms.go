package realtime

import "fmt"

// Room names follow a fixed <scope>_<id> convention shared by server and
// clients. Clients may only self-join order and group rooms; user and
// restaurant rooms are joined automatically on connect.
func UserRoom(userID string) string             { return fmt.Sprintf("user_%s", userID) }
func RestaurantRoom(restaurantID string) string { return fmt.Sprintf("restaurant_%s", restaurantID) }
func OrderRoom(orderID string) string           { return fmt.Sprintf("order_%s", orderID) }
func GroupRoom(groupID string) string           { return fmt.Sprintf("group_%s", groupID) }

// Server-originated event names.
const (
	EventOrdersUpdate   = "orders:update"
	EventDeliveryUpdate = "delivery:update"
	EventDriverLocation = "driver:location"
	EventGroupUpdate    = "group:update"
	EventPaymentUpdate  = "payment:update"
)
