// Package store implements the replicated authoritative state of the
// food-delivery core: the four entity tables (clients, restaurants,
// couriers, orders) and the operation log that makes them consistent
// across replicas.
//
// The store is a single-threaded agent: one goroutine owns the tables,
// every caller communicates through Store's exported methods, which
// enqueue a closure onto an internal mailbox channel and block for its
// result. No method ever touches the tables from the caller's goroutine,
// so the entity invariants never need a mutex to hold.
//
// Shaped after a defensive-copy KV store's discipline (every Get returns a
// copy, every Put stores a copy), generalized from one flat byte-string
// map to four typed entity maps plus the log, and from direct
// mutex-protected access to a channel-mailbox actor model.
package store

import (
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// Client is the store's client entity.
type Client struct {
	ClientID      string
	Position      wire.Position
	ActiveOrderID *uint64
	LastSeen      time.Time
}

func (c Client) clone() Client {
	cp := c
	if c.ActiveOrderID != nil {
		id := *c.ActiveOrderID
		cp.ActiveOrderID = &id
	}
	return cp
}

// DTO converts the entity to its wire snapshot.
func (c Client) DTO() wire.ClientDTO {
	return wire.ClientDTO{
		ClientID:      c.ClientID,
		Position:      c.Position,
		ActiveOrderID: c.ActiveOrderID,
	}
}

// Restaurant is the store's restaurant entity. AuthorizedOrders holds
// ids awaiting the restaurant's accept/reject decision; PendingOrders holds
// ids accepted for cooking.
type Restaurant struct {
	RestaurantID     string
	Position         wire.Position
	AuthorizedOrders map[uint64]struct{}
	PendingOrders    map[uint64]struct{}
	LastSeen         time.Time
}

func (r Restaurant) clone() Restaurant {
	cp := r
	cp.AuthorizedOrders = cloneSet(r.AuthorizedOrders)
	cp.PendingOrders = cloneSet(r.PendingOrders)
	return cp
}

// DTO converts the entity to its wire snapshot.
func (r Restaurant) DTO() wire.RestaurantDTO {
	return wire.RestaurantDTO{
		RestaurantID:     r.RestaurantID,
		Position:         r.Position,
		AuthorizedOrders: setKeys(r.AuthorizedOrders),
		PendingOrders:    setKeys(r.PendingOrders),
	}
}

// Courier is the store's courier entity.
type Courier struct {
	CourierID       string
	Position        wire.Position
	Status          wire.CourierStatus
	CurrentClientID *string
	CurrentOrderID  *uint64
	LastSeen        time.Time
}

func (c Courier) clone() Courier {
	cp := c
	if c.CurrentClientID != nil {
		v := *c.CurrentClientID
		cp.CurrentClientID = &v
	}
	if c.CurrentOrderID != nil {
		v := *c.CurrentOrderID
		cp.CurrentOrderID = &v
	}
	return cp
}

// DTO converts the entity to its wire snapshot.
func (c Courier) DTO() wire.CourierDTO {
	return wire.CourierDTO{
		CourierID:       c.CourierID,
		Position:        c.Position,
		Status:          c.Status,
		CurrentClientID: c.CurrentClientID,
		CurrentOrderID:  c.CurrentOrderID,
	}
}

// Order is the store's order entity.
type Order struct {
	OrderID                 uint64
	Dish                    string
	ClientID                string
	RestaurantID            string
	CourierID               *string
	Status                  wire.OrderStatus
	ClientPosition          wire.Position
	ExpectedDeliverySeconds int
	CancellationReason      wire.CancellationReason
	LastSeen                time.Time
}

func (o Order) clone() Order {
	cp := o
	if o.CourierID != nil {
		v := *o.CourierID
		cp.CourierID = &v
	}
	return cp
}

// DTO converts the entity to its wire snapshot.
func (o Order) DTO() wire.OrderDTO {
	return wire.OrderDTO{
		OrderID:                 o.OrderID,
		Dish:                    o.Dish,
		ClientID:                o.ClientID,
		RestaurantID:            o.RestaurantID,
		CourierID:               o.CourierID,
		Status:                  o.Status,
		ClientPosition:          o.ClientPosition,
		ExpectedDeliverySeconds: o.ExpectedDeliverySeconds,
		CancellationReason:      o.CancellationReason,
	}
}

func cloneSet(s map[uint64]struct{}) map[uint64]struct{} {
	cp := make(map[uint64]struct{}, len(s))
	for k := range s {
		cp[k] = struct{}{}
	}
	return cp
}

func setKeys(s map[uint64]struct{}) []uint64 {
	keys := make([]uint64, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// tables is the unexported, unsynchronized state only the Store agent's own
// goroutine ever touches.
type tables struct {
	clients     map[string]*Client
	restaurants map[string]*Restaurant
	couriers    map[string]*Courier
	orders      map[uint64]*Order

	log       map[uint64]LogEntry
	nextIndex uint64

	// nextOrderID is the monotone order-id counter; the leader assigns
	// these. Deliberately separate from nextIndex: an order id identifies
	// an entity, a log index identifies a replicated operation, and
	// LogEntry treats them as distinct concepts.
	nextOrderID uint64
}

func newTables() *tables {
	return &tables{
		clients:     make(map[string]*Client),
		restaurants: make(map[string]*Restaurant),
		couriers:    make(map[string]*Courier),
		orders:      make(map[uint64]*Order),
		log:         make(map[uint64]LogEntry),
		nextIndex:   0,
		nextOrderID: 1,
	}
}
