package orders

import (
	"time"

	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/locator"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// Notifier delivers a message to a connected user by id. Implemented by
// internal/coordinator.Coordinator; defined here so this package never
// imports coordinator, the same inversion internal/reaper uses.
type Notifier interface {
	Send(userID string, tag string, msg any) error
}

// PaymentClient is the service's handle to the payment authority.
// Implemented by *internal/payment.Client; declared as an interface here so
// tests can substitute a fake authority without a real connection.
type PaymentClient interface {
	Authorize(orderID uint64) (bool, error)
	Charge(orderID uint64, idempotencyKey string) error
}

// offerState is the bookkeeping for one order's outstanding courier-offer
// round: who it was offered to (so a loser can be told DeliveryNotNeeded
// once a winner is picked, or the round times out) and how many rounds have
// already been tried.
type offerState struct {
	offeredTo map[string]struct{}
	attempt   int
	timer     *time.Timer
}

type offerFireEvent struct {
	orderID uint64
	attempt int
}

const (
	baseExpectedDeliverySeconds    = 300
	expectedDeliverySecondsPerUnit = 30
)

// Service is the order service agent: a single goroutine
// owning the in-flight offers map, reached only through Handle. Every
// other method here runs directly inside that goroutine, invoked from
// dispatch or from an offer-timer firing — see the package doc.
type Service struct {
	store   *store.Store
	locator *locator.Service
	notify  Notifier
	pay     PaymentClient

	offerTimeout     time.Duration
	baseRadius       float64
	radiusGrowth     float64
	maxOfferAttempts int

	mailbox chan func(offers map[uint64]*offerState)
	fires   chan offerFireEvent
	done    chan struct{}
	log     *corelog.Logger
}

// New builds a Service and starts its mailbox goroutine.
func New(st *store.Store, loc *locator.Service, n Notifier, pay PaymentClient, baseRadius float64, offerTimeout time.Duration, maxOfferAttempts int, radiusGrowth float64) *Service {
	s := &Service{
		store:            st,
		locator:          loc,
		notify:           n,
		pay:              pay,
		offerTimeout:     offerTimeout,
		baseRadius:       baseRadius,
		radiusGrowth:     radiusGrowth,
		maxOfferAttempts: maxOfferAttempts,
		mailbox:          make(chan func(map[uint64]*offerState), 256),
		fires:            make(chan offerFireEvent, 64),
		done:             make(chan struct{}),
		log:              corelog.New("orders"),
	}
	go s.run()
	return s
}

func (s *Service) run() {
	offers := make(map[uint64]*offerState)
	for {
		select {
		case fn := <-s.mailbox:
			fn(offers)
		case ev := <-s.fires:
			s.onOfferTimeout(offers, ev)
		case <-s.done:
			return
		}
	}
}

// Close stops the Service's mailbox goroutine. Pending offer timers still
// fire but find the mailbox gone, the same tolerated leak as
// internal/reaper.Reaper.Close.
func (s *Service) Close() { close(s.done) }

func (s *Service) do(fn func(offers map[uint64]*offerState)) {
	reply := make(chan struct{})
	s.mailbox <- func(offers map[uint64]*offerState) {
		fn(offers)
		close(reply)
	}
	<-reply
}

// Handle dispatches one business message to the order service. Satisfies
// internal/coordinator.OrderService. Called from whatever goroutine is
// reading the sender's connection, so it always goes through the mailbox;
// everything it calls from there on runs directly inside run(), per the
// package doc's reentrancy rule.
func (s *Service) Handle(role wire.UserRole, userID string, tag string, msg any) {
	s.do(func(offers map[uint64]*offerState) {
		s.dispatch(offers, role, userID, tag, msg)
	})
}

func (s *Service) dispatch(offers map[uint64]*offerState, role wire.UserRole, userID string, tag string, msg any) {
	switch tag {
	case "RequestThisOrder":
		s.placeOrder(msg.(wire.RequestThisOrder))
	case "UpdateOrderStatus":
		s.updateOrderStatus(offers, msg.(wire.UpdateOrderStatus))
	case "CancelOrder":
		s.restaurantCancel(msg.(wire.CancelOrder))
	case "RequestDelivery":
		s.beginOffering(offers, msg.(wire.RequestDelivery).OrderID, 1, s.baseRadius)
	case "IAmAvailable":
		s.courierAvailable(msg.(wire.IAmAvailable))
	case "DeliveryAccepted":
		s.deliveryAccepted(offers, msg.(wire.DeliveryAccepted))
	case "DeliverThisOrder":
		s.restaurantConfirmed(offers, msg.(wire.DeliverThisOrder))
	case "Delivered":
		s.delivered(msg.(wire.Delivered).OrderID)
	default:
		s.log.Warn("unhandled tag", map[string]any{"tag": tag, "role": string(role), "user_id": userID})
	}
}

func (s *Service) notifySend(userID, tag string, msg any) {
	if err := s.notify.Send(userID, tag, msg); err != nil {
		s.log.Warn("notify failed", map[string]any{"user_id": userID, "tag": tag, "error": err.Error()})
	}
}
