package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/locator"
	"github.com/foodmesh/core/internal/reaper"
	"github.com/foodmesh/core/internal/ring"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/transport"
	"github.com/foodmesh/core/internal/wire"
	"github.com/stretchr/testify/require"
)

func fastTestConfig() config.Config {
	cfg := config.Defaults()
	cfg.PingInterval = 30 * time.Millisecond
	cfg.TLeader = 100 * time.Millisecond
	cfg.ReplicationInterval = 30 * time.Millisecond
	cfg.DiscoveryWindow = 80 * time.Millisecond
	return cfg
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition never became true within %s", timeout)
}

func mustFreeEndpoint(t *testing.T) wire.Endpoint {
	t.Helper()
	acc, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	ep, err := wire.ParseEndpoint(acc.Addr().String())
	require.NoError(t, err)
	require.NoError(t, acc.Close())
	return ep
}

type fakeOrderService struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeOrderService) Handle(role wire.UserRole, userID, tag string, msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, tag+":"+userID)
}

func (f *fakeOrderService) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// testReplica wires up a full single- or multi-node coordinator stack over
// loopback TCP, the same fixture shape internal/ring/manager_test.go uses
// for its own Manager tests.
type testReplica struct {
	coord  *Coordinator
	orders *fakeOrderService
	st     *store.Store
	mgr    *ring.Manager
	acc    *transport.Acceptor
	ep     wire.Endpoint
}

func startTestReplica(t *testing.T, all []wire.Endpoint, self wire.Endpoint, cfg config.Config) *testReplica {
	t.Helper()
	acc, err := transport.Listen(self.String())
	require.NoError(t, err)

	st := store.New()
	mgr := ring.New(self, all, st, cfg)
	loc := locator.New(st, cfg.ProximityRadius)
	coord := New(st, mgr, loc)
	rp := reaper.New(st, coord, cfg.TReap)
	coord.SetReaper(rp)
	fake := &fakeOrderService{}
	coord.SetOrderService(fake)

	go acc.Serve(coord.HandleConnection)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	t.Cleanup(func() {
		cancel()
		mgr.Close()
		rp.Close()
		coord.Close()
		acc.Close()
		st.Close()
	})

	return &testReplica{coord: coord, orders: fake, st: st, mgr: mgr, acc: acc, ep: self}
}

func singleNodeReplica(t *testing.T) *testReplica {
	ep := mustFreeEndpoint(t)
	cfg := fastTestConfig()
	r := startTestReplica(t, []wire.Endpoint{ep}, ep, cfg)
	eventually(t, time.Second, func() bool { return r.mgr.IsLeader() })
	return r
}

type frame struct {
	tag string
	msg any
}

// frameReader drains a PeerChannel's inbound frames into a channel so tests
// can read them one at a time without starting a second, racing call to
// PeerChannel.Run against the same connection.
type frameReader struct {
	frames chan frame
}

func startFrameReader(pc *transport.PeerChannel) *frameReader {
	fr := &frameReader{frames: make(chan frame, 16)}
	go pc.Run(func(tag string, msg any) { fr.frames <- frame{tag, msg} })
	return fr
}

func (fr *frameReader) next(t *testing.T) (string, any) {
	t.Helper()
	select {
	case f := <-fr.frames:
		return f.tag, f.msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return "", nil
	}
}

func TestRegisterUser_CreatesEntityAndRepliesRecoveredUserInfo(t *testing.T) {
	r := singleNodeReplica(t)

	pc, err := transport.Dial(r.ep.String())
	require.NoError(t, err)
	defer pc.Close(nil)

	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: "c1", Position: wire.Position{X: 1, Y: 1}}))

	tag, msg := fr.next(t)
	require.Equal(t, "RecoveredUserInfo", tag)
	info := msg.(wire.RecoveredUserInfo)
	require.Nil(t, info.Order)

	var ok bool
	r.st.View(func(rd store.Reader) { _, ok = rd.Client("c1") })
	require.True(t, ok)
}

func TestRegisterUser_RecoversInFlightOrder(t *testing.T) {
	r := singleNodeReplica(t)
	r.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{store.AddClient{ClientID: "c1", Position: wire.Position{}}}
	})
	o, _ := r.st.PlaceOrder(store.Order{ClientID: "c1", RestaurantID: "rest", Status: wire.OrderPreparing})
	r.st.Transact(func(store.Reader) []store.Mutation {
		oid := o.OrderID
		return []store.Mutation{store.SetClientActiveOrder{ClientID: "c1", OrderID: &oid}}
	})

	pc, err := transport.Dial(r.ep.String())
	require.NoError(t, err)
	defer pc.Close(nil)

	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: "c1", Position: wire.Position{}}))

	tag, msg := fr.next(t)
	require.Equal(t, "RecoveredUserInfo", tag)
	info := msg.(wire.RecoveredUserInfo)
	require.NotNil(t, info.Order)
	require.Equal(t, o.OrderID, info.Order.OrderID)
}

func TestRegisterUser_RestaurantRecoversOldestPendingOrder(t *testing.T) {
	r := singleNodeReplica(t)
	r.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{store.AddRestaurant{RestaurantID: "rest", Position: wire.Position{}}}
	})
	older, _ := r.st.PlaceOrder(store.Order{ClientID: "c1", RestaurantID: "rest", Status: wire.OrderPreparing})
	newer, _ := r.st.PlaceOrder(store.Order{ClientID: "c2", RestaurantID: "rest", Status: wire.OrderPending})
	r.st.Transact(func(store.Reader) []store.Mutation {
		return []store.Mutation{
			store.AddAuthorizedOrderToRestaurant{RestaurantID: "rest", OrderID: older.OrderID},
			store.MoveOrderToPending{RestaurantID: "rest", OrderID: older.OrderID},
			store.AddAuthorizedOrderToRestaurant{RestaurantID: "rest", OrderID: newer.OrderID},
			store.MoveOrderToPending{RestaurantID: "rest", OrderID: newer.OrderID},
		}
	})

	pc, err := transport.Dial(r.ep.String())
	require.NoError(t, err)
	defer pc.Close(nil)

	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleRestaurant, UserID: "rest", Position: wire.Position{}}))

	tag, msg := fr.next(t)
	require.Equal(t, "RecoveredUserInfo", tag)
	info := msg.(wire.RecoveredUserInfo)
	require.NotNil(t, info.Order)
	require.Equal(t, older.OrderID, info.Order.OrderID)
}

func TestBusinessMessage_DispatchesToOrderService(t *testing.T) {
	r := singleNodeReplica(t)

	pc, err := transport.Dial(r.ep.String())
	require.NoError(t, err)
	defer pc.Close(nil)

	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: "c1", Position: wire.Position{}}))
	fr.next(t) // RecoveredUserInfo

	require.NoError(t, pc.Send("RequestThisOrder", wire.RequestThisOrder{ClientID: "c1", RestaurantID: "rest", Dish: "ramen"}))

	eventually(t, time.Second, func() bool {
		for _, c := range r.orders.calls() {
			if c == "RequestThisOrder:c1" {
				return true
			}
		}
		return false
	})
}

func TestBusinessMessage_FromFollowerGetsRetryLater(t *testing.T) {
	epA := mustFreeEndpoint(t)
	epB := mustFreeEndpoint(t)
	all := []wire.Endpoint{epA, epB}
	cfg := fastTestConfig()

	a := startTestReplica(t, all, epA, cfg)
	b := startTestReplica(t, all, epB, cfg)

	min := epA
	follower := b
	if epB.Less(epA) {
		min = epB
		follower = a
	}

	eventually(t, 2*time.Second, func() bool {
		l, ok := follower.mgr.Leader()
		return ok && l.Equal(min)
	})
	eventually(t, time.Second, func() bool { return !follower.mgr.IsLeader() })

	pc, err := transport.Dial(follower.ep.String())
	require.NoError(t, err)
	defer pc.Close(nil)

	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: "c1", Position: wire.Position{}}))

	tag, msg := fr.next(t)
	require.Equal(t, "RetryLater", tag)
	retry := msg.(wire.RetryLater)
	require.True(t, retry.Leader.Equal(min))
}

func TestConnectionClosed_NotifiesReaper(t *testing.T) {
	cfg := fastTestConfig()
	cfg.TReap = 20 * time.Millisecond
	ep := mustFreeEndpoint(t)
	r := startTestReplica(t, []wire.Endpoint{ep}, ep, cfg)
	eventually(t, time.Second, func() bool { return r.mgr.IsLeader() })

	pc, err := transport.Dial(ep.String())
	require.NoError(t, err)
	fr := startFrameReader(pc)
	require.NoError(t, pc.Send("RegisterUser", wire.RegisterUser{Role: wire.RoleClient, UserID: "c1", Position: wire.Position{}}))
	fr.next(t)

	pc.Close(nil)

	eventually(t, time.Second, func() bool {
		var ok bool
		r.st.View(func(rd store.Reader) { _, ok = rd.Client("c1") })
		return !ok
	})
}
