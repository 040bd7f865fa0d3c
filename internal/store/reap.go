package store

import (
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// CheckReap removes the named entity only if it has not been seen since
// scheduledAt — a later RegisterUser already refreshed
// LastSeen, meaning the disconnect this timer was scheduled for no longer
// applies and the reap should be skipped — and cancel any of its owned
// orders that are not already Delivering, since an in-flight delivery
// continues regardless of whether its client or restaurant is still
// connected.
func (s *Store) CheckReap(role wire.UserRole, userID string, scheduledAt time.Time) (removed bool, cancelled []Order) {
	type result struct {
		removed   bool
		cancelled []Order
	}
	reply := make(chan result, 1)
	s.mailbox <- func(t *tables) {
		lastSeen, exists := lastSeenFor(t, role, userID)
		if !exists || lastSeen.After(scheduledAt) {
			reply <- result{}
			return
		}

		var cancelledOrders []Order
		for _, o := range t.orders {
			if o.Status == wire.OrderDelivered || o.Status == wire.OrderCancelled || o.Status == wire.OrderDelivering {
				continue
			}
			if !ownsOrder(o, role, userID) {
				continue
			}
			appendLeaderEntry(t, SetOrderStatus{OrderID: o.OrderID, Status: wire.OrderCancelled})
			appendLeaderEntry(t, SetOrderCancellationReason{OrderID: o.OrderID, Reason: wire.ReasonUserDisconnected})
			cancelledOrders = append(cancelledOrders, t.orders[o.OrderID].clone())
		}

		switch role {
		case wire.RoleClient:
			appendLeaderEntry(t, RemoveClient{ClientID: userID})
		case wire.RoleRestaurant:
			appendLeaderEntry(t, RemoveRestaurant{RestaurantID: userID})
		case wire.RoleCourier:
			appendLeaderEntry(t, RemoveCourier{CourierID: userID})
		}

		reply <- result{removed: true, cancelled: cancelledOrders}
	}
	r := <-reply
	return r.removed, r.cancelled
}

func lastSeenFor(t *tables, role wire.UserRole, userID string) (time.Time, bool) {
	switch role {
	case wire.RoleClient:
		if c, ok := t.clients[userID]; ok {
			return c.LastSeen, true
		}
	case wire.RoleRestaurant:
		if r, ok := t.restaurants[userID]; ok {
			return r.LastSeen, true
		}
	case wire.RoleCourier:
		if c, ok := t.couriers[userID]; ok {
			return c.LastSeen, true
		}
	}
	return time.Time{}, false
}

func ownsOrder(o *Order, role wire.UserRole, userID string) bool {
	switch role {
	case wire.RoleClient:
		return o.ClientID == userID
	case wire.RoleRestaurant:
		return o.RestaurantID == userID
	case wire.RoleCourier:
		return o.CourierID != nil && *o.CourierID == userID
	default:
		return false
	}
}
