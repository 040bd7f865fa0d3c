package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// Mutation is one state-changing operation applied to the tables and
// recorded in the log. Every mutation is a small value type that knows its
// own wire tag and how to apply itself — a plain KV store can apply
// changes inline in Put/Delete; once changes must replicate, the change
// itself has to be a value that can travel, not just a side effect.
type Mutation interface {
	Tag() string
	Apply(t *tables)
}

var mutationRegistry = map[string]reflect.Type{}

func registerMutation(tag string, zero Mutation) {
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	mutationRegistry[tag] = t
}

func init() {
	registerMutation("AddClient", AddClient{})
	registerMutation("RemoveClient", RemoveClient{})
	registerMutation("SetClientPosition", SetClientPosition{})
	registerMutation("SetClientActiveOrder", SetClientActiveOrder{})
	registerMutation("AddRestaurant", AddRestaurant{})
	registerMutation("RemoveRestaurant", RemoveRestaurant{})
	registerMutation("AddAuthorizedOrderToRestaurant", AddAuthorizedOrderToRestaurant{})
	registerMutation("MoveOrderToPending", MoveOrderToPending{})
	registerMutation("RemoveOrderFromRestaurant", RemoveOrderFromRestaurant{})
	registerMutation("AddCourier", AddCourier{})
	registerMutation("RemoveCourier", RemoveCourier{})
	registerMutation("SetCourierPosition", SetCourierPosition{})
	registerMutation("SetCourierStatus", SetCourierStatus{})
	registerMutation("SetCourierForOrder", SetCourierForOrder{})
	registerMutation("ClearCourierOrder", ClearCourierOrder{})
	registerMutation("AddOrder", AddOrder{})
	registerMutation("SetOrderStatus", SetOrderStatus{})
	registerMutation("SetOrderCancellationReason", SetOrderCancellationReason{})
}

// EncodeMutation wraps a mutation in its tagged wire envelope.
func EncodeMutation(m Mutation) (wire.MutationEnvelope, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return wire.MutationEnvelope{}, fmt.Errorf("store: marshal mutation %s: %w", m.Tag(), err)
	}
	return wire.MutationEnvelope{Tag: m.Tag(), Payload: payload}, nil
}

// DecodeMutation unwraps a mutation from its tagged wire envelope.
func DecodeMutation(env wire.MutationEnvelope) (Mutation, error) {
	t, ok := mutationRegistry[env.Tag]
	if !ok {
		return nil, fmt.Errorf("store: unknown mutation tag %q", env.Tag)
	}
	v := reflect.New(t)
	if err := json.Unmarshal(env.Payload, v.Interface()); err != nil {
		return nil, fmt.Errorf("store: unmarshal mutation %s: %w", env.Tag, err)
	}
	return v.Elem().Interface().(Mutation), nil
}

// LogEntry pairs a leader-assigned monotonic index with the mutation it
// recorded.
type LogEntry struct {
	Index    uint64
	Mutation Mutation
}

// --- client mutations ---

// AddClient creates the client entity if absent, or refreshes LastSeen and
// Position if it's a reconnect: created on first registration, mutated by
// position updates thereafter.
type AddClient struct {
	ClientID string
	Position wire.Position
}

func (AddClient) Tag() string { return "AddClient" }
func (m AddClient) Apply(t *tables) {
	if c, ok := t.clients[m.ClientID]; ok {
		c.Position = m.Position
		c.LastSeen = now()
		return
	}
	t.clients[m.ClientID] = &Client{ClientID: m.ClientID, Position: m.Position, LastSeen: now()}
}

// RemoveClient deletes a client entity, applied by the reaper once a
// disconnected client's grace window expires without reconnection.
type RemoveClient struct{ ClientID string }

func (RemoveClient) Tag() string { return "RemoveClient" }
func (m RemoveClient) Apply(t *tables) { delete(t.clients, m.ClientID) }

// SetClientPosition updates a client's position and touches LastSeen.
type SetClientPosition struct {
	ClientID string
	Position wire.Position
}

func (SetClientPosition) Tag() string { return "SetClientPosition" }
func (m SetClientPosition) Apply(t *tables) {
	if c, ok := t.clients[m.ClientID]; ok {
		c.Position = m.Position
		c.LastSeen = now()
	}
}

// SetClientActiveOrder records which order a client currently has in
// flight, or clears it (OrderID nil) once the order reaches a terminal
// status.
type SetClientActiveOrder struct {
	ClientID string
	OrderID  *uint64
}

func (SetClientActiveOrder) Tag() string { return "SetClientActiveOrder" }
func (m SetClientActiveOrder) Apply(t *tables) {
	if c, ok := t.clients[m.ClientID]; ok {
		c.ActiveOrderID = m.OrderID
		c.LastSeen = now()
	}
}

// --- restaurant mutations ---

// AddRestaurant creates the restaurant entity if absent, or refreshes
// LastSeen and Position on reconnect.
type AddRestaurant struct {
	RestaurantID string
	Position     wire.Position
}

func (AddRestaurant) Tag() string { return "AddRestaurant" }
func (m AddRestaurant) Apply(t *tables) {
	if r, ok := t.restaurants[m.RestaurantID]; ok {
		r.Position = m.Position
		r.LastSeen = now()
		return
	}
	t.restaurants[m.RestaurantID] = &Restaurant{
		RestaurantID:     m.RestaurantID,
		Position:         m.Position,
		AuthorizedOrders: map[uint64]struct{}{},
		PendingOrders:    map[uint64]struct{}{},
		LastSeen:         now(),
	}
}

// RemoveRestaurant deletes a restaurant entity.
type RemoveRestaurant struct{ RestaurantID string }

func (RemoveRestaurant) Tag() string { return "RemoveRestaurant" }
func (m RemoveRestaurant) Apply(t *tables) { delete(t.restaurants, m.RestaurantID) }

// AddAuthorizedOrderToRestaurant adds an order id to a restaurant's
// authorized-but-undecided set, on successful payment authorization.
type AddAuthorizedOrderToRestaurant struct {
	RestaurantID string
	OrderID      uint64
}

func (AddAuthorizedOrderToRestaurant) Tag() string { return "AddAuthorizedOrderToRestaurant" }
func (m AddAuthorizedOrderToRestaurant) Apply(t *tables) {
	if r, ok := t.restaurants[m.RestaurantID]; ok {
		r.AuthorizedOrders[m.OrderID] = struct{}{}
		r.LastSeen = now()
	}
}

// MoveOrderToPending moves an order id from a restaurant's authorized set
// to its pending (accepted-for-cooking) set, on restaurant acceptance.
type MoveOrderToPending struct {
	RestaurantID string
	OrderID      uint64
}

func (MoveOrderToPending) Tag() string { return "MoveOrderToPending" }
func (m MoveOrderToPending) Apply(t *tables) {
	if r, ok := t.restaurants[m.RestaurantID]; ok {
		delete(r.AuthorizedOrders, m.OrderID)
		r.PendingOrders[m.OrderID] = struct{}{}
		r.LastSeen = now()
	}
}

// RemoveOrderFromRestaurant removes an order id from whichever of a
// restaurant's two sets holds it, on cancellation or successful handoff to
// a courier.
type RemoveOrderFromRestaurant struct {
	RestaurantID string
	OrderID      uint64
}

func (RemoveOrderFromRestaurant) Tag() string { return "RemoveOrderFromRestaurant" }
func (m RemoveOrderFromRestaurant) Apply(t *tables) {
	if r, ok := t.restaurants[m.RestaurantID]; ok {
		delete(r.AuthorizedOrders, m.OrderID)
		delete(r.PendingOrders, m.OrderID)
		r.LastSeen = now()
	}
}

// --- courier mutations ---

// AddCourier creates the courier entity if absent, defaulting to Available,
// or refreshes LastSeen and Position on reconnect.
type AddCourier struct {
	CourierID string
	Position  wire.Position
}

func (AddCourier) Tag() string { return "AddCourier" }
func (m AddCourier) Apply(t *tables) {
	if c, ok := t.couriers[m.CourierID]; ok {
		c.Position = m.Position
		c.LastSeen = now()
		return
	}
	t.couriers[m.CourierID] = &Courier{
		CourierID: m.CourierID,
		Position:  m.Position,
		Status:    wire.CourierAvailable,
		LastSeen:  now(),
	}
}

// RemoveCourier deletes a courier entity.
type RemoveCourier struct{ CourierID string }

func (RemoveCourier) Tag() string { return "RemoveCourier" }
func (m RemoveCourier) Apply(t *tables) { delete(t.couriers, m.CourierID) }

// SetCourierPosition updates a courier's position and touches LastSeen.
type SetCourierPosition struct {
	CourierID string
	Position  wire.Position
}

func (SetCourierPosition) Tag() string { return "SetCourierPosition" }
func (m SetCourierPosition) Apply(t *tables) {
	if c, ok := t.couriers[m.CourierID]; ok {
		c.Position = m.Position
		c.LastSeen = now()
	}
}

// SetCourierStatus transitions a courier between Reconnecting, Recovering,
// Available, AwaitingConfirmation, and Delivering.
type SetCourierStatus struct {
	CourierID string
	Status    wire.CourierStatus
}

func (SetCourierStatus) Tag() string { return "SetCourierStatus" }
func (m SetCourierStatus) Apply(t *tables) {
	if c, ok := t.couriers[m.CourierID]; ok {
		c.Status = m.Status
		c.LastSeen = now()
	}
}

// SetCourierForOrder is the single arbitration mutation: it binds an order
// to the courier that won the assignment mutex, recording the bond on both
// sides in one atomic application. A second SetCourierForOrder for an
// order that already has a courier is a no-op, giving a resent
// DeliveryAccepted idempotency for free.
type SetCourierForOrder struct {
	OrderID   uint64
	CourierID string
	ClientID  string
}

func (SetCourierForOrder) Tag() string { return "SetCourierForOrder" }
func (m SetCourierForOrder) Apply(t *tables) {
	o, ok := t.orders[m.OrderID]
	if !ok || o.CourierID != nil {
		return
	}
	c, ok := t.couriers[m.CourierID]
	if !ok {
		return
	}
	cid := m.CourierID
	o.CourierID = &cid
	o.LastSeen = now()
	c.Status = wire.CourierAwaitingConfirmation
	clientID := m.ClientID
	c.CurrentClientID = &clientID
	orderID := m.OrderID
	c.CurrentOrderID = &orderID
	c.LastSeen = now()
}

// ClearCourierOrder releases a courier back to Available once its delivery
// completes (or the order is reassigned away from it), clearing both
// current-order fields.
type ClearCourierOrder struct{ CourierID string }

func (ClearCourierOrder) Tag() string { return "ClearCourierOrder" }
func (m ClearCourierOrder) Apply(t *tables) {
	if c, ok := t.couriers[m.CourierID]; ok {
		c.Status = wire.CourierAvailable
		c.CurrentClientID = nil
		c.CurrentOrderID = nil
		c.LastSeen = now()
	}
}

// --- order mutations ---

// AddOrder creates a new order entity with a leader-assigned id, or, during
// snapshot reconstruction, installs an order verbatim.
type AddOrder struct {
	Order Order
}

func (AddOrder) Tag() string { return "AddOrder" }
func (m AddOrder) Apply(t *tables) {
	o := m.Order.clone()
	o.LastSeen = now()
	t.orders[o.OrderID] = &o
}

// SetOrderStatus advances an order through the order's transition table.
type SetOrderStatus struct {
	OrderID uint64
	Status  wire.OrderStatus
}

func (SetOrderStatus) Tag() string { return "SetOrderStatus" }
func (m SetOrderStatus) Apply(t *tables) {
	if o, ok := t.orders[m.OrderID]; ok {
		o.Status = m.Status
		o.LastSeen = now()
	}
}

// SetOrderCancellationReason records why an order was cancelled, alongside
// the SetOrderStatus(Cancelled) mutation that always accompanies it.
type SetOrderCancellationReason struct {
	OrderID uint64
	Reason  wire.CancellationReason
}

func (SetOrderCancellationReason) Tag() string { return "SetOrderCancellationReason" }
func (m SetOrderCancellationReason) Apply(t *tables) {
	if o, ok := t.orders[m.OrderID]; ok {
		o.CancellationReason = m.Reason
	}
}

func now() time.Time { return time.Now() }
