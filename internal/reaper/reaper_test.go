package reaper

import (
	"sync"
	"testing"
	"time"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu  sync.Mutex
	got []string
}

func (f *fakeNotifier) Send(userID, tag string, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, userID+":"+tag)
	return nil
}

func (f *fakeNotifier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func newTestStore(t *testing.T) *store.Store {
	s := store.New()
	t.Cleanup(s.Close)
	return s
}

func TestReaper_RemovesClientAfterGraceWindowElapses(t *testing.T) {
	st := newTestStore(t)
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{store.AddClient{ClientID: "c1", Position: wire.Position{}}}
	})

	n := &fakeNotifier{}
	r := New(st, n, 20*time.Millisecond)
	t.Cleanup(r.Close)

	r.ConnectionClosed(wire.RoleClient, "c1")

	require.Eventually(t, func() bool {
		var ok bool
		st.View(func(rd store.Reader) { _, ok = rd.Client("c1") })
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestReaper_ReconnectBeforeGraceWindowPreventsRemoval(t *testing.T) {
	st := newTestStore(t)
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{store.AddClient{ClientID: "c1", Position: wire.Position{}}}
	})

	n := &fakeNotifier{}
	r := New(st, n, 40*time.Millisecond)
	t.Cleanup(r.Close)

	r.ConnectionClosed(wire.RoleClient, "c1")

	time.Sleep(10 * time.Millisecond)
	// Reconnect: refresh LastSeen after the disconnect the timer was
	// scheduled for.
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{store.AddClient{ClientID: "c1", Position: wire.Position{X: 1, Y: 1}}}
	})

	time.Sleep(80 * time.Millisecond)
	var ok bool
	st.View(func(rd store.Reader) { _, ok = rd.Client("c1") })
	assert.True(t, ok, "client should survive reap since it reconnected before the grace window elapsed")
}

func TestReaper_CancelsInFlightOrderAndNotifiesRestaurant(t *testing.T) {
	st := newTestStore(t)
	st.Transact(func(r store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddClient{ClientID: "c1", Position: wire.Position{}},
			store.AddRestaurant{RestaurantID: "r1", Position: wire.Position{}},
		}
	})
	o, _ := st.PlaceOrder(store.Order{ClientID: "c1", RestaurantID: "r1", Status: wire.OrderPreparing})

	n := &fakeNotifier{}
	r := New(st, n, 10*time.Millisecond)
	t.Cleanup(r.Close)

	r.ConnectionClosed(wire.RoleClient, "c1")

	require.Eventually(t, func() bool {
		var got wire.OrderStatus
		st.View(func(rd store.Reader) {
			ord, _ := rd.Order(o.OrderID)
			got = ord.Status
		})
		return got == wire.OrderCancelled
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, n.calls(), "r1:CancelOrder")
}
