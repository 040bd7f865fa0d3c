package orders

import (
	"sync"
	"testing"
	"time"

	"github.com/foodmesh/core/internal/locator"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMsg struct {
	userID string
	tag    string
	msg    any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeNotifier) Send(userID, tag string, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{userID, tag, msg})
	return nil
}

func (f *fakeNotifier) to(userID, tag string) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, s := range f.sent {
		if s.userID == userID && s.tag == tag {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeNotifier) count(tag string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.tag == tag {
			n++
		}
	}
	return n
}

type fakePayment struct {
	mu        sync.Mutex
	authorize bool
	charged   []uint64
}

func (f *fakePayment) Authorize(orderID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorize, nil
}

func (f *fakePayment) Charge(orderID uint64, idempotencyKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charged = append(f.charged, orderID)
	return nil
}

func (f *fakePayment) chargedOrders() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.charged...)
}

type fixture struct {
	svc   *Service
	st    *store.Store
	loc   *locator.Service
	notif *fakeNotifier
	pay   *fakePayment
}

func newFixture(t *testing.T, authorize bool) *fixture {
	st := store.New()
	t.Cleanup(st.Close)
	loc := locator.New(st, 10.0)
	notif := &fakeNotifier{}
	pay := &fakePayment{authorize: authorize}
	svc := New(st, loc, notif, pay, 10.0, 60*time.Millisecond, 3, 2.0)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, st: st, loc: loc, notif: notif, pay: pay}
}

func seedParties(t *testing.T, f *fixture) {
	t.Helper()
	f.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddClient{ClientID: "c1", Position: wire.Position{X: 6, Y: 8}},
			store.AddRestaurant{RestaurantID: "r1", Position: wire.Position{X: 4, Y: 7}},
		}
	})
}

func orderIDFor(t *testing.T, f *fixture, clientID string) uint64 {
	t.Helper()
	var oid uint64
	require.Eventually(t, func() bool {
		var ok bool
		f.st.View(func(r store.Reader) {
			c, found := r.Client(clientID)
			if found && c.ActiveOrderID != nil {
				oid = *c.ActiveOrderID
				ok = true
			}
		})
		return ok
	}, time.Second, 5*time.Millisecond)
	return oid
}

func orderStatus(f *fixture, orderID uint64) wire.OrderStatus {
	var status wire.OrderStatus
	f.st.View(func(r store.Reader) {
		if o, ok := r.Order(orderID); ok {
			status = o.Status
		}
	})
	return status
}

func TestPlaceOrder_AuthorizedFlow(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})

	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	require.Len(t, f.notif.to("c1", "AuthorizationResult"), 1)
	assert.True(t, f.notif.to("c1", "AuthorizationResult")[0].msg.(wire.AuthorizationResult).OK)
	require.Len(t, f.notif.to("r1", "NewOrder"), 1)

	var restaurant store.Restaurant
	f.st.View(func(r store.Reader) { restaurant, _ = r.Restaurant("r1") })
	_, inAuthorized := restaurant.AuthorizedOrders[oid]
	assert.True(t, inAuthorized)
}

func TestPlaceOrder_PaymentDenied(t *testing.T) {
	f := newFixture(t, false)
	seedParties(t, f)

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})

	require.Eventually(t, func() bool { return len(f.notif.to("c1", "AuthorizationResult")) == 1 }, time.Second, 5*time.Millisecond)
	result := f.notif.to("c1", "AuthorizationResult")[0].msg.(wire.AuthorizationResult)
	assert.False(t, result.OK)

	require.Eventually(t, func() bool { return orderStatus(f, result.OrderID) == wire.OrderCancelled }, time.Second, 5*time.Millisecond)

	var client store.Client
	f.st.View(func(r store.Reader) { client, _ = r.Client("c1") })
	assert.Nil(t, client.ActiveOrderID)

	var restaurant store.Restaurant
	f.st.View(func(r store.Reader) { restaurant, _ = r.Restaurant("r1") })
	assert.Empty(t, restaurant.AuthorizedOrders)
}

func TestFullHappyPath_ThroughDeliveryAndCapture(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)
	f.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{store.AddCourier{CourierID: "d1", Position: wire.Position{X: 5, Y: 7}}}
	})

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPending})
	require.Equal(t, wire.OrderPending, orderStatus(f, oid))

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPreparing})
	require.Equal(t, wire.OrderPreparing, orderStatus(f, oid))

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderReadyForDelivery})
	require.Eventually(t, func() bool { return len(f.notif.to("d1", "NewOfferToDeliver")) == 1 }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleCourier, "d1", "DeliveryAccepted", wire.DeliveryAccepted{OrderID: oid, CourierID: "d1"})
	require.Eventually(t, func() bool { return len(f.notif.to("r1", "DeliveryAvailable")) == 1 }, time.Second, 5*time.Millisecond)

	var courier store.Courier
	f.st.View(func(r store.Reader) { courier, _ = r.Courier("d1") })
	require.NotNil(t, courier.CurrentOrderID)
	assert.Equal(t, oid, *courier.CurrentOrderID)

	f.svc.Handle(wire.RoleRestaurant, "r1", "DeliverThisOrder", wire.DeliverThisOrder{Order: wire.OrderDTO{OrderID: oid}})
	require.Eventually(t, func() bool { return len(f.notif.to("d1", "DeliverThisOrder")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, wire.OrderDelivering, orderStatus(f, oid))

	f.svc.Handle(wire.RoleCourier, "d1", "Delivered", wire.Delivered{OrderID: oid})
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderDelivered }, time.Second, 5*time.Millisecond)

	assert.Contains(t, f.pay.chargedOrders(), oid)
	require.Eventually(t, func() bool { return len(f.notif.to("c1", "OrderFinalized")) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.notif.to("r1", "OrderFinalized")) == 1 }, time.Second, 5*time.Millisecond)

	f.st.View(func(r store.Reader) { courier, _ = r.Courier("d1") })
	assert.Equal(t, wire.CourierAvailable, courier.Status)
	assert.Nil(t, courier.CurrentOrderID)
}

func TestRestaurantCancel_AuthorizedOrder(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "CancelOrder", wire.CancelOrder{OrderID: oid, Reason: wire.ReasonRestaurantRejected})

	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderCancelled }, time.Second, 5*time.Millisecond)
	var order store.Order
	f.st.View(func(r store.Reader) { order, _ = r.Order(oid) })
	assert.Equal(t, wire.ReasonRestaurantRejected, order.CancellationReason)

	require.Eventually(t, func() bool { return len(f.notif.to("c1", "OrderFinalized")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDeliveryAccepted_SecondCourierGetsDeliveryNotNeeded(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)
	f.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddCourier{CourierID: "d1", Position: wire.Position{X: 5, Y: 7}},
			store.AddCourier{CourierID: "d2", Position: wire.Position{X: 5, Y: 8}},
		}
	})

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPending})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPreparing})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderReadyForDelivery})

	require.Eventually(t, func() bool { return f.notif.count("NewOfferToDeliver") == 2 }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleCourier, "d1", "DeliveryAccepted", wire.DeliveryAccepted{OrderID: oid, CourierID: "d1"})
	f.svc.Handle(wire.RoleCourier, "d2", "DeliveryAccepted", wire.DeliveryAccepted{OrderID: oid, CourierID: "d2"})

	require.Eventually(t, func() bool { return len(f.notif.to("d2", "DeliveryNotNeeded")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.notif.to("d1", "DeliveryNotNeeded"))

	var order store.Order
	f.st.View(func(r store.Reader) { order, _ = r.Order(oid) })
	require.NotNil(t, order.CourierID)
	assert.Equal(t, "d1", *order.CourierID)
}

func TestNoCourierAvailable_CancelsAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPending})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPreparing})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderReadyForDelivery})

	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderCancelled }, 2*time.Second, 10*time.Millisecond)

	var order store.Order
	f.st.View(func(r store.Reader) { order, _ = r.Order(oid) })
	assert.Equal(t, wire.ReasonNoCourierAvailable, order.CancellationReason)

	require.Eventually(t, func() bool { return len(f.notif.to("c1", "OrderFinalized")) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.notif.to("r1", "OrderFinalized")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDeliveryAccepted_RemovesOrderFromRestaurantPendingSet(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)
	f.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{store.AddCourier{CourierID: "d1", Position: wire.Position{X: 5, Y: 7}}}
	})

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPending})

	var restaurant store.Restaurant
	f.st.View(func(r store.Reader) { restaurant, _ = r.Restaurant("r1") })
	assert.Contains(t, restaurant.PendingOrders, oid)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPreparing})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderReadyForDelivery})
	require.Eventually(t, func() bool { return len(f.notif.to("d1", "NewOfferToDeliver")) == 1 }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleCourier, "d1", "DeliveryAccepted", wire.DeliveryAccepted{OrderID: oid, CourierID: "d1"})
	require.Eventually(t, func() bool { return len(f.notif.to("r1", "DeliveryAvailable")) == 1 }, time.Second, 5*time.Millisecond)

	f.st.View(func(r store.Reader) { restaurant, _ = r.Restaurant("r1") })
	assert.NotContains(t, restaurant.PendingOrders, oid)
	assert.NotContains(t, restaurant.AuthorizedOrders, oid)
}

func TestCourierAvailable_IgnoredWhileBoundToAnOrder(t *testing.T) {
	f := newFixture(t, true)
	seedParties(t, f)
	f.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{store.AddCourier{CourierID: "d1", Position: wire.Position{X: 5, Y: 7}}}
	})

	f.svc.Handle(wire.RoleClient, "c1", "RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "r1", Dish: "ramen"})
	oid := orderIDFor(t, f, "c1")
	require.Eventually(t, func() bool { return orderStatus(f, oid) == wire.OrderAuthorized }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPending})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderPreparing})
	f.svc.Handle(wire.RoleRestaurant, "r1", "UpdateOrderStatus", wire.UpdateOrderStatus{OrderID: oid, Status: wire.OrderReadyForDelivery})
	require.Eventually(t, func() bool { return len(f.notif.to("d1", "NewOfferToDeliver")) == 1 }, time.Second, 5*time.Millisecond)

	f.svc.Handle(wire.RoleCourier, "d1", "DeliveryAccepted", wire.DeliveryAccepted{OrderID: oid, CourierID: "d1"})
	require.Eventually(t, func() bool { return len(f.notif.to("r1", "DeliveryAvailable")) == 1 }, time.Second, 5*time.Millisecond)

	var courier store.Courier
	f.st.View(func(r store.Reader) { courier, _ = r.Courier("d1") })
	require.Equal(t, wire.CourierAwaitingConfirmation, courier.Status)
	require.NotNil(t, courier.CurrentOrderID)

	// A courier simulator reconnecting mid-delivery resends IAmAvailable
	// unconditionally (cmd/courier). That must not flip this courier back
	// to Available while it is still bound to oid, or the locator would
	// hand it a second order on top of the first.
	f.svc.Handle(wire.RoleCourier, "d1", "IAmAvailable", wire.IAmAvailable{CourierID: "d1", Position: wire.Position{X: 5, Y: 7}})

	f.st.View(func(r store.Reader) { courier, _ = r.Courier("d1") })
	assert.Equal(t, wire.CourierAwaitingConfirmation, courier.Status)
	require.NotNil(t, courier.CurrentOrderID)
	assert.Equal(t, oid, *courier.CurrentOrderID)

	nearby := f.loc.NearbyAvailableCouriers(wire.Position{X: 4, Y: 7})
	for _, c := range nearby {
		assert.NotEqual(t, "d1", c.CourierID)
	}
}
