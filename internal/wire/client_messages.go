package wire

func init() {
	Register("RequestNearbyRestaurants", RequestNearbyRestaurants{})
	Register("NearbyRestaurants", NearbyRestaurants{})
	Register("RequestThisOrder", RequestThisOrder{})
	Register("AuthorizationResult", AuthorizationResult{})
	Register("NotifyOrderUpdated", NotifyOrderUpdated{})
	Register("OrderFinalized", OrderFinalized{})
}

// RequestNearbyRestaurants asks the locator service for restaurants within
// the configured proximity radius of the client's current position.
type RequestNearbyRestaurants struct {
	ClientID string   `json:"client_id"`
	Position Position `json:"position"`
}

// NearbyRestaurants answers RequestNearbyRestaurants.
type NearbyRestaurants struct {
	Restaurants []RestaurantDTO `json:"restaurants"`
}

// RequestThisOrder places a new order: a client-chosen dish name against a
// target restaurant. The order id is assigned by the leader, never the
// client.
type RequestThisOrder struct {
	ClientID     string `json:"client_id"`
	RestaurantID string `json:"restaurant_id"`
	Dish         string `json:"dish"`
}

// AuthorizationResult tells the client whether RequestThisOrder's payment
// authorization succeeded, and echoes the server-assigned order id so the
// client can track it thereafter.
type AuthorizationResult struct {
	OrderID uint64 `json:"order_id"`
	OK      bool   `json:"ok"`
}

// NotifyOrderUpdated is pushed to the client whenever its order's status
// advances.
type NotifyOrderUpdated struct {
	Order OrderDTO `json:"order"`
}

// OrderFinalized is pushed to the client (and restaurant) once an order
// reaches a terminal status, Delivered or Cancelled.
type OrderFinalized struct {
	Order OrderDTO `json:"order"`
}
