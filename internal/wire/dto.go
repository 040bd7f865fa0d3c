package wire

// Position is an abstract 2-D coordinate used only for proximity filtering;
// not realistic geographic routing.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderRequested        OrderStatus = "Requested"
	OrderAuthorized       OrderStatus = "Authorized"
	OrderPending          OrderStatus = "Pending"
	OrderPreparing        OrderStatus = "Preparing"
	OrderReadyForDelivery OrderStatus = "ReadyForDelivery"
	OrderDelivering       OrderStatus = "Delivering"
	OrderDelivered        OrderStatus = "Delivered"
	OrderCancelled        OrderStatus = "Cancelled"
)

// CourierStatus enumerates courier availability, named
// after original_source/common/src/types/delivery_status.rs's
// Available/WaitingConfirmation/Delivering trio (renamed
// AwaitingConfirmation here to match the wire message it follows,
// NewOfferToDeliver -> DeliveryAccepted).
type CourierStatus string

const (
	CourierAvailable            CourierStatus = "Available"
	CourierAwaitingConfirmation CourierStatus = "AwaitingConfirmation"
	CourierDelivering           CourierStatus = "Delivering"
)

// CancellationReason gives the "reason surfaced to client" denial
// requirement (payment refused, restaurant rejects, no courier found,
// disconnected owner) a concrete typed value instead of a bare string, so
// OrderFinalized can tell a client *why* an order ended without the core
// inventing new order states.
type CancellationReason string

const (
	ReasonNone                CancellationReason = ""
	ReasonPaymentDenied       CancellationReason = "PaymentDenied"
	ReasonRestaurantRejected  CancellationReason = "RestaurantRejected"
	ReasonNoCourierAvailable  CancellationReason = "NoCourierAvailable"
	ReasonUserDisconnected    CancellationReason = "UserDisconnected"
)

// ClientDTO is the flat wire snapshot of a client, sufficient to fully
// reconstruct the entity on receipt.
type ClientDTO struct {
	ClientID      string    `json:"client_id"`
	Position      Position  `json:"position"`
	ActiveOrderID *uint64   `json:"active_order_id,omitempty"`
}

// RestaurantDTO is the flat wire snapshot of a restaurant.
type RestaurantDTO struct {
	RestaurantID     string   `json:"restaurant_id"`
	Position         Position `json:"position"`
	AuthorizedOrders []uint64 `json:"authorized_orders"`
	PendingOrders    []uint64 `json:"pending_orders"`
}

// CourierDTO is the flat wire snapshot of a courier.
type CourierDTO struct {
	CourierID       string        `json:"courier_id"`
	Position        Position      `json:"position"`
	Status          CourierStatus `json:"status"`
	CurrentClientID *string       `json:"current_client_id,omitempty"`
	CurrentOrderID  *uint64       `json:"current_order_id,omitempty"`
}

// OrderDTO is the flat wire snapshot of an order.
type OrderDTO struct {
	OrderID                 uint64              `json:"order_id"`
	Dish                    string              `json:"dish"`
	ClientID                string              `json:"client_id"`
	RestaurantID            string              `json:"restaurant_id"`
	CourierID               *string             `json:"courier_id,omitempty"`
	Status                  OrderStatus         `json:"status"`
	ClientPosition          Position            `json:"client_position"`
	ExpectedDeliverySeconds int                 `json:"expected_delivery_seconds"`
	CancellationReason      CancellationReason  `json:"cancellation_reason,omitempty"`
}
