package payment

import (
	"math/rand"

	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/wire"
)

// orderState tracks what the authority has decided about one order id:
// the authority is stateful per order-id even though each individual call
// looks stateless, since a
// repeated RequestCharge on an already-captured order must stay a no-op
// rather than charging twice.
type orderState struct {
	authorized bool
	captured   bool
}

// Authority is the payment authority's business logic: a single-threaded
// agent holding per-order-id state, reached only through its
// mailbox. Grounded on the same actor shape as internal/store.Store and
// internal/ring.Manager — the authority is a tiny standalone agent, not
// a passive data structure, because RequestCharge's no-op-unless-authorized
// rule needs the same check-then-act atomicity the store's courier
// arbitration needs.
type Authority struct {
	pAuth float64
	rng   *rand.Rand

	mailbox chan func(map[uint64]*orderState)
	done    chan struct{}
	log     *corelog.Logger
}

// NewAuthority starts an Authority agent that authorizes with probability
// pAuth.
func NewAuthority(pAuth float64, seed int64) *Authority {
	a := &Authority{
		pAuth:   pAuth,
		rng:     rand.New(rand.NewSource(seed)),
		mailbox: make(chan func(map[uint64]*orderState), 64),
		done:    make(chan struct{}),
		log:     corelog.New("payment"),
	}
	go a.run()
	return a
}

func (a *Authority) run() {
	orders := make(map[uint64]*orderState)
	for {
		select {
		case fn := <-a.mailbox:
			fn(orders)
		case <-a.done:
			return
		}
	}
}

// Close stops the Authority's goroutine.
func (a *Authority) Close() { close(a.done) }

// Handle is the authority's tag dispatch table, invoked by whatever
// connection handler owns the inbound frame (cmd/payment wires this
// directly to a transport.Acceptor, mirroring internal/ring.Manager.
// Dispatch's shape).
func (a *Authority) Handle(tag string, msg any) (replyTag string, reply any, hasReply bool) {
	switch tag {
	case "RequestAuthorization":
		return a.authorize(msg.(wire.RequestAuthorization).OrderID)
	case "RequestCharge":
		return a.charge(msg.(wire.RequestCharge).OrderID)
	default:
		return "", nil, false
	}
}

func (a *Authority) authorize(orderID uint64) (string, any, bool) {
	reply := make(chan struct{ ok bool }, 1)
	a.mailbox <- func(orders map[uint64]*orderState) {
		ok := a.rng.Float64() < a.pAuth
		orders[orderID] = &orderState{authorized: ok}
		reply <- struct{ ok bool }{ok}
	}
	r := <-reply
	a.log.Info("authorization decided", map[string]any{"order_id": orderID, "authorized": r.ok})
	if r.ok {
		return "AuthorizedOrder", wire.AuthorizedOrder{OrderID: orderID}, true
	}
	return "DeniedOrder", wire.DeniedOrder{OrderID: orderID}, true
}

func (a *Authority) charge(orderID uint64) (string, any, bool) {
	reply := make(chan bool, 1)
	a.mailbox <- func(orders map[uint64]*orderState) {
		st, ok := orders[orderID]
		if !ok || !st.authorized || st.captured {
			// Never authorized, or already captured: RequestCharge on any other
			// order is a no-op — no reply.
			reply <- false
			return
		}
		st.captured = true
		reply <- true
	}
	if !<-reply {
		return "", nil, false
	}
	return "PaymentCompleted", wire.PaymentCompleted{OrderID: orderID}, true
}
