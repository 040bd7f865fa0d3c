package orders

import (
	"math"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// placeOrder implements the Placement step: create the order in
// Requested, then kick off authorization. Authorize is a network round
// trip to another process, so it runs in its own goroutine rather than
// blocking this agent's mailbox; onAuthorized re-enters through do once it
// has an answer.
func (s *Service) placeOrder(req wire.RequestThisOrder) {
	var clientPos, restaurantPos wire.Position
	s.store.View(func(r store.Reader) {
		if c, ok := r.Client(req.ClientID); ok {
			clientPos = c.Position
		}
		if rest, ok := r.Restaurant(req.RestaurantID); ok {
			restaurantPos = rest.Position
		}
	})

	placed, _ := s.store.PlaceOrder(store.Order{
		Dish:                    req.Dish,
		ClientID:                req.ClientID,
		RestaurantID:            req.RestaurantID,
		Status:                  wire.OrderRequested,
		ClientPosition:          clientPos,
		ExpectedDeliverySeconds: expectedDeliverySeconds(restaurantPos, clientPos),
	})

	orderID := placed.OrderID
	clientID := req.ClientID
	restaurantID := req.RestaurantID
	s.store.Transact(func(store.Reader) []store.Mutation {
		oid := orderID
		return []store.Mutation{store.SetClientActiveOrder{ClientID: clientID, OrderID: &oid}}
	})

	go func() {
		ok, err := s.pay.Authorize(orderID)
		if err != nil {
			s.log.Warn("authorization request failed", map[string]any{"order_id": orderID, "error": err.Error()})
			ok = false
		}
		s.do(func(offers map[uint64]*offerState) {
			s.onAuthorized(orderID, clientID, restaurantID, ok)
		})
	}()
}

// expectedDeliverySeconds estimates a delivery window from straight-line
// distance; the data model carries the field but leaves its derivation
// unspecified, so a distance-scaled estimate stands in for the courier's
// own eventual (and, from the core's perspective, external) delay
// calculation.
func expectedDeliverySeconds(restaurant, client wire.Position) int {
	dx := restaurant.X - client.X
	dy := restaurant.Y - client.Y
	return baseExpectedDeliverySeconds + int(math.Sqrt(dx*dx+dy*dy)*expectedDeliverySecondsPerUnit)
}

// onAuthorized applies the Authorization outcome. Runs inside
// run() via the do() call in placeOrder's goroutine, so it never touches
// offers directly — it takes no offers argument because authorization
// never races an offer round for the same order (an order cannot reach
// ReadyForDelivery before this step completes).
func (s *Service) onAuthorized(orderID uint64, clientID, restaurantID string, ok bool) {
	if !ok {
		s.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{
				store.SetOrderStatus{OrderID: orderID, Status: wire.OrderCancelled},
				store.SetOrderCancellationReason{OrderID: orderID, Reason: wire.ReasonPaymentDenied},
				store.SetClientActiveOrder{ClientID: clientID, OrderID: nil},
			}
		})
		s.notifySend(clientID, "AuthorizationResult", wire.AuthorizationResult{OrderID: orderID, OK: false})
		return
	}

	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetOrderStatus{OrderID: orderID, Status: wire.OrderAuthorized},
			store.AddAuthorizedOrderToRestaurant{RestaurantID: restaurantID, OrderID: orderID},
		}
	})
	order := s.currentOrder(orderID)
	s.notifySend(restaurantID, "NewOrder", wire.NewOrder{Order: order})
	s.notifySend(clientID, "AuthorizationResult", wire.AuthorizationResult{OrderID: orderID, OK: true})
}

// updateOrderStatus handles the restaurant-driven half of the order
// transition table: Authorized->Pending (accept), Pending->Preparing, and
// Preparing->ReadyForDelivery, the last of which starts courier offering.
func (s *Service) updateOrderStatus(offers map[uint64]*offerState, req wire.UpdateOrderStatus) {
	order := s.currentOrder(req.OrderID)
	if order.OrderID == 0 {
		return
	}

	switch req.Status {
	case wire.OrderPending:
		if order.Status != wire.OrderAuthorized {
			return
		}
		s.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{
				store.SetOrderStatus{OrderID: req.OrderID, Status: wire.OrderPending},
				store.MoveOrderToPending{RestaurantID: order.RestaurantID, OrderID: req.OrderID},
			}
		})
		s.notifySend(order.ClientID, "NotifyOrderUpdated", wire.NotifyOrderUpdated{Order: s.currentOrder(req.OrderID)})

	case wire.OrderPreparing:
		if order.Status != wire.OrderPending {
			return
		}
		s.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{store.SetOrderStatus{OrderID: req.OrderID, Status: wire.OrderPreparing}}
		})
		s.notifySend(order.ClientID, "NotifyOrderUpdated", wire.NotifyOrderUpdated{Order: s.currentOrder(req.OrderID)})

	case wire.OrderReadyForDelivery:
		if order.Status != wire.OrderPreparing {
			return
		}
		s.store.Transact(func(store.Reader) []store.Mutation {
			return []store.Mutation{store.SetOrderStatus{OrderID: req.OrderID, Status: wire.OrderReadyForDelivery}}
		})
		s.notifySend(order.ClientID, "NotifyOrderUpdated", wire.NotifyOrderUpdated{Order: s.currentOrder(req.OrderID)})
		s.beginOffering(offers, req.OrderID, 1, s.baseRadius)

	default:
		s.log.Warn("unexpected UpdateOrderStatus target", map[string]any{"order_id": req.OrderID, "status": string(req.Status)})
	}
}

// restaurantCancel handles a restaurant rejecting an order still awaiting
// its accept/reject decision (a restaurant cancellation).
func (s *Service) restaurantCancel(req wire.CancelOrder) {
	order := s.currentOrder(req.OrderID)
	if order.OrderID == 0 || order.Status != wire.OrderAuthorized {
		return
	}
	s.store.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.SetOrderStatus{OrderID: req.OrderID, Status: wire.OrderCancelled},
			store.SetOrderCancellationReason{OrderID: req.OrderID, Reason: wire.ReasonRestaurantRejected},
			store.RemoveOrderFromRestaurant{RestaurantID: order.RestaurantID, OrderID: req.OrderID},
			store.SetClientActiveOrder{ClientID: order.ClientID, OrderID: nil},
		}
	})
	s.notifySend(order.ClientID, "OrderFinalized", wire.OrderFinalized{Order: s.currentOrder(req.OrderID)})
}

// restaurantPosition looks up a restaurant's current position for
// courier-proximity searches. Returns the zero position if
// the restaurant is gone, which simply yields zero candidates nearby.
func (s *Service) restaurantPosition(restaurantID string) wire.Position {
	var pos wire.Position
	s.store.View(func(r store.Reader) {
		if rest, ok := r.Restaurant(restaurantID); ok {
			pos = rest.Position
		}
	})
	return pos
}

// currentOrder is a small convenience wrapper over store.View + Order,
// returning a zero-value DTO (OrderID 0) if the order is gone — order id 0
// never occurs since store.New starts nextOrderID at 1.
func (s *Service) currentOrder(orderID uint64) wire.OrderDTO {
	var dto wire.OrderDTO
	s.store.View(func(r store.Reader) {
		if o, ok := r.Order(orderID); ok {
			dto = o.DTO()
		}
	})
	return dto
}
