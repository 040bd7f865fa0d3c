package orders

import (
	"math"
	"strconv"
	"time"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// courierAvailable handles a courier announcing (or re-announcing) that it
// is free to accept deliveries: a reconnected courier's status stays
// whatever the store last recorded until it explicitly re-announces
// itself. A courier still bound to an order (awaiting confirmation or
// mid-delivery) ignores the Available half of that announcement: a
// simulated or real courier reconnecting mid-delivery resends
// IAmAvailable unconditionally, and honoring it blindly would flip the
// courier back to Available while current_order_id is still set, breaking
// the invariant that the two always agree, and opening it up for a second
// assignment on top of the first.
func (s *Service) courierAvailable(msg wire.IAmAvailable) {
	s.store.Transact(func(r store.Reader) []store.Mutation {
		muts := []store.Mutation{store.SetCourierPosition{CourierID: msg.CourierID, Position: msg.Position}}
		if c, ok := r.Courier(msg.CourierID); ok && c.CurrentOrderID != nil {
			return muts
		}
		return append(muts, store.SetCourierStatus{CourierID: msg.CourierID, Status: wire.CourierAvailable})
	})
}

// beginOffering locates nearby available couriers and sends each of them
// NewOfferToDeliver. attempt and
// radius are threaded through explicitly so a retry can widen the search
// without re-deriving state that belongs to the caller (the first call, the
// RequestDelivery accelerant, and onOfferTimeout's retry all converge
// here).
func (s *Service) beginOffering(offers map[uint64]*offerState, orderID uint64, attempt int, radius float64) {
	order := s.currentOrder(orderID)
	if order.OrderID == 0 || order.Status != wire.OrderReadyForDelivery || order.CourierID != nil {
		return
	}

	// Courier proximity is judged against the restaurant's position, not
	// the client's.
	candidates := s.locator.NearbyAvailableCouriersWithin(s.restaurantPosition(order.RestaurantID), radius)
	if len(candidates) == 0 && attempt < s.maxOfferAttempts {
		s.scheduleRetry(offers, orderID, attempt)
		return
	}
	if len(candidates) == 0 {
		s.cancelNoCourier(orderID, order.ClientID, order.RestaurantID)
		return
	}

	offered := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		offered[c.CourierID] = struct{}{}
		s.notifySend(c.CourierID, "NewOfferToDeliver", wire.NewOfferToDeliver{Order: order})
	}

	st := &offerState{offeredTo: offered, attempt: attempt}
	st.timer = time.AfterFunc(s.offerTimeout, func() {
		select {
		case s.fires <- offerFireEvent{orderID: orderID, attempt: attempt}:
		case <-s.done:
		}
	})
	if existing, ok := offers[orderID]; ok && existing.timer != nil {
		existing.timer.Stop()
	}
	offers[orderID] = st
}

func (s *Service) scheduleRetry(offers map[uint64]*offerState, orderID uint64, attempt int) {
	st := &offerState{offeredTo: map[string]struct{}{}, attempt: attempt}
	st.timer = time.AfterFunc(s.offerTimeout, func() {
		select {
		case s.fires <- offerFireEvent{orderID: orderID, attempt: attempt}:
		case <-s.done:
		}
	})
	offers[orderID] = st
}

// onOfferTimeout runs directly inside run() via the fires case. A stale
// fire (the order's offer round moved on to a later attempt, or resolved,
// since this timer was armed) is ignored.
func (s *Service) onOfferTimeout(offers map[uint64]*offerState, ev offerFireEvent) {
	st, ok := offers[ev.orderID]
	if !ok || st.attempt != ev.attempt {
		return
	}
	delete(offers, ev.orderID)

	order := s.currentOrder(ev.orderID)
	if order.OrderID == 0 || order.Status != wire.OrderReadyForDelivery || order.CourierID != nil {
		return
	}

	for courierID := range st.offeredTo {
		s.notifySend(courierID, "DeliveryNotNeeded", wire.DeliveryNotNeeded{OrderID: ev.orderID})
	}

	if ev.attempt >= s.maxOfferAttempts {
		s.cancelNoCourier(ev.orderID, order.ClientID, order.RestaurantID)
		return
	}

	nextRadius := s.baseRadius * math.Pow(s.radiusGrowth, float64(ev.attempt))
	s.beginOffering(offers, ev.orderID, ev.attempt+1, nextRadius)
}

func (s *Service) cancelNoCourier(orderID uint64, clientID, restaurantID string) {
	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetOrderStatus{OrderID: orderID, Status: wire.OrderCancelled},
			store.SetOrderCancellationReason{OrderID: orderID, Reason: wire.ReasonNoCourierAvailable},
			store.RemoveOrderFromRestaurant{RestaurantID: restaurantID, OrderID: orderID},
			store.SetClientActiveOrder{ClientID: clientID, OrderID: nil},
		}
	})
	final := s.currentOrder(orderID)
	s.notifySend(clientID, "OrderFinalized", wire.OrderFinalized{Order: final})
	s.notifySend(restaurantID, "OrderFinalized", wire.OrderFinalized{Order: final})
}

// deliveryAccepted implements the centralized assignment mutex: the
// store's SetCourierForOrder mutation is itself the atomic check-then-act,
// so a second DeliveryAccepted for an already-bound order is already a
// no-op there. This handler only needs to react to whichever outcome
// resulted.
func (s *Service) deliveryAccepted(offers map[uint64]*offerState, msg wire.DeliveryAccepted) {
	order := s.currentOrder(msg.OrderID)
	if order.OrderID == 0 {
		return
	}
	if order.CourierID != nil {
		if *order.CourierID != msg.CourierID {
			s.notifySend(msg.CourierID, "DeliveryNotNeeded", wire.DeliveryNotNeeded{OrderID: msg.OrderID})
		}
		return
	}

	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetCourierForOrder{OrderID: msg.OrderID, CourierID: msg.CourierID, ClientID: order.ClientID},
			store.RemoveOrderFromRestaurant{RestaurantID: order.RestaurantID, OrderID: msg.OrderID},
		}
	})

	won := s.currentOrder(msg.OrderID)
	if won.CourierID == nil || *won.CourierID != msg.CourierID {
		// Another DeliveryAccepted for the same order beat this one to the
		// store between the read above and this Transact.
		s.notifySend(msg.CourierID, "DeliveryNotNeeded", wire.DeliveryNotNeeded{OrderID: msg.OrderID})
		return
	}

	if st, ok := offers[msg.OrderID]; ok {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(offers, msg.OrderID)
		for courierID := range st.offeredTo {
			if courierID == msg.CourierID {
				continue
			}
			s.notifySend(courierID, "DeliveryNotNeeded", wire.DeliveryNotNeeded{OrderID: msg.OrderID})
		}
	}

	s.notifySend(won.RestaurantID, "DeliveryAvailable", wire.DeliveryAvailable{Order: won, CourierID: msg.CourierID})
}

// restaurantConfirmed forwards the restaurant's DeliverThisOrder hand-off
// confirmation on to the selected courier and advances both the order and
// the courier to Delivering.
func (s *Service) restaurantConfirmed(offers map[uint64]*offerState, msg wire.DeliverThisOrder) {
	order := s.currentOrder(msg.Order.OrderID)
	if order.OrderID == 0 || order.CourierID == nil || order.Status != wire.OrderReadyForDelivery {
		return
	}
	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetOrderStatus{OrderID: order.OrderID, Status: wire.OrderDelivering},
			store.SetCourierStatus{CourierID: *order.CourierID, Status: wire.CourierDelivering},
		}
	})
	s.notifySend(*order.CourierID, "DeliverThisOrder", wire.DeliverThisOrder{Order: s.currentOrder(order.OrderID)})
}

// delivered implements the Capture step: charge, then finalize and notify
// both parties. Charge is another network round trip to the payment
// authority, so it runs off this agent's goroutine like Authorize does.
func (s *Service) delivered(orderID uint64) {
	order := s.currentOrder(orderID)
	if order.OrderID == 0 || order.CourierID == nil {
		return
	}
	courierID := *order.CourierID
	clientID := order.ClientID
	restaurantID := order.RestaurantID

	go func() {
		idempotencyKey := orderIdempotencyKey(orderID)
		if err := s.pay.Charge(orderID, idempotencyKey); err != nil {
			s.log.Warn("charge request failed", map[string]any{"order_id": orderID, "error": err.Error()})
			return
		}
		s.do(func(offers map[uint64]*offerState) {
			s.finalizeDelivered(orderID, clientID, restaurantID, courierID)
		})
	}()
}

func (s *Service) finalizeDelivered(orderID uint64, clientID, restaurantID, courierID string) {
	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetOrderStatus{OrderID: orderID, Status: wire.OrderDelivered},
			store.ClearCourierOrder{CourierID: courierID},
			store.SetClientActiveOrder{ClientID: clientID, OrderID: nil},
		}
	})
	final := s.currentOrder(orderID)
	s.notifySend(clientID, "OrderFinalized", wire.OrderFinalized{Order: final})
	s.notifySend(restaurantID, "OrderFinalized", wire.OrderFinalized{Order: final})
}

func orderIdempotencyKey(orderID uint64) string {
	return "order-" + strconv.FormatUint(orderID, 10)
}
