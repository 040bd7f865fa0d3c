package coordinator

import (
	"fmt"

	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/locator"
	"github.com/foodmesh/core/internal/reaper"
	"github.com/foodmesh/core/internal/ring"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
)

// OrderService is the subset of internal/orders.Service the coordinator
// dispatches business messages to. Declared here rather than in
// internal/orders so that package can define its own Notifier interface
// and never import coordinator — the same inversion internal/reaper uses
// for the opposite direction.
type OrderService interface {
	Handle(role wire.UserRole, userID string, tag string, msg any)
}

type identity struct {
	role   wire.UserRole
	userID string
}

// cstate is the bimap a Coordinator's mailbox goroutine owns exclusively —
// the same discipline internal/ring.state and internal/store.tables use.
type cstate struct {
	byUser map[string]*transport.PeerChannel
	byConn map[string]identity // transport.PeerChannel.ID -> identity
}

// Coordinator owns the peer_address <-> user_id bimap and routes business
// messages to the right handler, as a single-threaded agent: every
// exported method posts a closure to its mailbox and blocks for the
// result, so two connections registering or closing at once can never
// race the bimap the way a mutex-guarded registry would need explicit
// locking to prevent.
type Coordinator struct {
	store   *store.Store
	ring    *ring.Manager
	locator *locator.Service
	reap    *reaper.Reaper
	log     *corelog.Logger

	mailbox chan func(*cstate)
	done    chan struct{}

	orders OrderService
}

// New builds a Coordinator and starts its mailbox goroutine. SetReaper and
// SetOrderService must be called once those components exist: both take
// this Coordinator as their Notifier, so construction necessarily happens
// Coordinator-first, dependents-second, then wired back in with these
// setters.
func New(st *store.Store, rm *ring.Manager, loc *locator.Service) *Coordinator {
	c := &Coordinator{
		store:   st,
		ring:    rm,
		locator: loc,
		log:     corelog.New("coordinator"),
		mailbox: make(chan func(*cstate), 256),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	s := &cstate{byUser: make(map[string]*transport.PeerChannel), byConn: make(map[string]identity)}
	for {
		select {
		case fn := <-c.mailbox:
			fn(s)
		case <-c.done:
			return
		}
	}
}

// Close stops the Coordinator's mailbox goroutine.
func (c *Coordinator) Close() { close(c.done) }

func (c *Coordinator) do(fn func(s *cstate)) {
	reply := make(chan struct{})
	c.mailbox <- func(s *cstate) {
		fn(s)
		close(reply)
	}
	<-reply
}

func query[T any](c *Coordinator, fn func(s *cstate) T) T {
	reply := make(chan T, 1)
	c.mailbox <- func(s *cstate) {
		reply <- fn(s)
	}
	return <-reply
}

// SetReaper wires the reaper in after construction; see New.
func (c *Coordinator) SetReaper(rp *reaper.Reaper) { c.reap = rp }

// SetOrderService wires the order service in after construction; see New.
func (c *Coordinator) SetOrderService(os OrderService) { c.orders = os }

// HandleConnection reads frames from pc until it closes, dispatching each
// one, then cleans up the bimap and notifies the reaper. Called in its own
// goroutine by the replica's transport.Acceptor.Serve loop for every
// inbound connection, ring peers included.
func (c *Coordinator) HandleConnection(pc *transport.PeerChannel) {
	pc.Run(func(tag string, msg any) { c.onMessage(pc, tag, msg) })
	c.onClosed(pc)
}

// Send implements reaper.Notifier and internal/orders' own Notifier
// interface: deliver a tagged message to userID's current connection, if
// any. Returns an error if userID is not currently connected; callers
// already treat a failed notification as best-effort (the store remains
// the source of truth, so a missed push is recovered via RegisterUser's
// RecoveredUserInfo on reconnect).
func (c *Coordinator) Send(userID string, tag string, msg any) error {
	pc := query(c, func(s *cstate) *transport.PeerChannel { return s.byUser[userID] })
	if pc == nil {
		return fmt.Errorf("coordinator: %s is not connected", userID)
	}
	return pc.Send(tag, msg)
}

func (c *Coordinator) identityFor(pc *transport.PeerChannel) (identity, bool) {
	type result struct {
		id identity
		ok bool
	}
	r := query(c, func(s *cstate) result {
		id, ok := s.byConn[pc.ID]
		return result{id, ok}
	})
	return r.id, r.ok
}

func (c *Coordinator) onMessage(pc *transport.PeerChannel, tag string, msg any) {
	if ring.IsRingTag(tag) {
		replyTag, reply, hasReply := c.ring.Dispatch(tag, msg)
		if hasReply {
			if err := pc.Send(replyTag, reply); err != nil {
				c.log.Warn("ring reply send failed", map[string]any{"tag": replyTag, "error": err.Error()})
			}
		}
		return
	}

	if tag == "RegisterUser" {
		c.handleRegisterUser(pc, msg.(wire.RegisterUser))
		return
	}

	id, ok := c.identityFor(pc)
	if !ok {
		c.log.Warn("business message from unregistered connection", map[string]any{"tag": tag, "peer": pc.RemoteAddr})
		return
	}

	if !c.ring.IsLeader() {
		leader, _ := c.ring.Leader()
		if err := pc.Send("RetryLater", wire.RetryLater{Leader: leader}); err != nil {
			c.log.Warn("RetryLater send failed", map[string]any{"user_id": id.userID, "error": err.Error()})
		}
		return
	}

	if tag == "RequestNearbyRestaurants" {
		req := msg.(wire.RequestNearbyRestaurants)
		nearby := c.locator.NearbyRestaurants(req.Position)
		if err := pc.Send("NearbyRestaurants", wire.NearbyRestaurants{Restaurants: nearby}); err != nil {
			c.log.Warn("NearbyRestaurants send failed", map[string]any{"client_id": id.userID, "error": err.Error()})
		}
		return
	}

	c.orders.Handle(id.role, id.userID, tag, msg)
}

func (c *Coordinator) handleRegisterUser(pc *transport.PeerChannel, req wire.RegisterUser) {
	if !c.ring.IsLeader() {
		leader, _ := c.ring.Leader()
		if err := pc.Send("RetryLater", wire.RetryLater{Leader: leader}); err != nil {
			c.log.Warn("RetryLater send failed", map[string]any{"user_id": req.UserID, "error": err.Error()})
		}
		return
	}

	switch req.Role {
	case wire.RoleClient:
		c.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{store.AddClient{ClientID: req.UserID, Position: req.Position}}
		})
	case wire.RoleRestaurant:
		c.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{store.AddRestaurant{RestaurantID: req.UserID, Position: req.Position}}
		})
	case wire.RoleCourier:
		c.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{store.AddCourier{CourierID: req.UserID, Position: req.Position}}
		})
	default:
		c.log.Warn("RegisterUser with unknown role", map[string]any{"role": string(req.Role), "user_id": req.UserID})
		return
	}

	c.do(func(s *cstate) {
		if prior, ok := s.byUser[req.UserID]; ok && prior != pc {
			delete(s.byConn, prior.ID)
		}
		s.byUser[req.UserID] = pc
		s.byConn[pc.ID] = identity{role: req.Role, userID: req.UserID}
	})

	c.log.Info("user registered", map[string]any{"role": string(req.Role), "user_id": req.UserID, "peer": pc.RemoteAddr})

	info := wire.RecoveredUserInfo{Order: c.inFlightOrderFor(req.Role, req.UserID)}
	if err := pc.Send("RecoveredUserInfo", info); err != nil {
		c.log.Warn("RecoveredUserInfo send failed", map[string]any{"user_id": req.UserID, "error": err.Error()})
	}
}

// inFlightOrderFor finds the one order a reconnecting client, restaurant,
// or courier still has open, to answer the recovery handshake a
// reconnect's RegisterUser triggers. A restaurant can hold several orders
// in pending_orders at
// once (cooking has started but delivery hasn't finished), unlike a
// client or courier which has at most one; this reports the oldest of
// them by order id, since an order's push (NewOrder, DeliveryAvailable)
// fires exactly once and is never retried, so the longest-stalled order is
// the one most in need of a kick back into motion.
func (c *Coordinator) inFlightOrderFor(role wire.UserRole, userID string) *wire.OrderDTO {
	var dto *wire.OrderDTO
	c.store.View(func(r store.Reader) {
		switch role {
		case wire.RoleClient:
			client, ok := r.Client(userID)
			if !ok || client.ActiveOrderID == nil {
				return
			}
			if o, ok := r.Order(*client.ActiveOrderID); ok {
				d := o.DTO()
				dto = &d
			}
		case wire.RoleCourier:
			courier, ok := r.Courier(userID)
			if !ok || courier.CurrentOrderID == nil {
				return
			}
			if o, ok := r.Order(*courier.CurrentOrderID); ok {
				d := o.DTO()
				dto = &d
			}
		case wire.RoleRestaurant:
			restaurant, ok := r.Restaurant(userID)
			if !ok {
				return
			}
			var oldest *wire.OrderDTO
			for orderID := range restaurant.PendingOrders {
				o, ok := r.Order(orderID)
				if !ok {
					continue
				}
				d := o.DTO()
				if oldest == nil || d.OrderID < oldest.OrderID {
					oldest = &d
				}
			}
			dto = oldest
		}
	})
	return dto
}

func (c *Coordinator) onClosed(pc *transport.PeerChannel) {
	type result struct {
		id identity
		ok bool
	}
	r := query(c, func(s *cstate) result {
		id, ok := s.byConn[pc.ID]
		if ok {
			delete(s.byConn, pc.ID)
			if current, still := s.byUser[id.userID]; still && current == pc {
				delete(s.byUser, id.userID)
			}
		}
		return result{id, ok}
	})

	if !r.ok {
		return
	}
	c.log.Info("connection closed", map[string]any{"role": string(r.id.role), "user_id": r.id.userID})
	c.reap.ConnectionClosed(r.id.role, r.id.userID)
}
