package reaper

import (
	"time"

	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// Notifier delivers a message to a connected user by id. Implemented by
// internal/coordinator.Coordinator; defined here so this package never
// imports coordinator, the same inversion internal/orders uses.
type Notifier interface {
	Send(userID string, tag string, msg any) error
}

type fireEvent struct {
	role        wire.UserRole
	userID      string
	scheduledAt time.Time
}

// Reaper runs as a single-threaded agent: ConnectionClosed
// notifications and timer firings both arrive as mailbox closures, so a
// user that reconnects and disconnects again in quick succession can never
// race its own pending timer.
type Reaper struct {
	store  *store.Store
	notify Notifier
	tReap  time.Duration
	log    *corelog.Logger

	mailbox chan func(timers map[string]*time.Timer)
	fires   chan fireEvent
	done    chan struct{}
}

// New builds a Reaper watching st, notifying via n, using grace window
// tReap.
func New(st *store.Store, n Notifier, tReap time.Duration) *Reaper {
	r := &Reaper{
		store:   st,
		notify:  n,
		tReap:   tReap,
		log:     corelog.New("reaper"),
		mailbox: make(chan func(map[string]*time.Timer), 64),
		fires:   make(chan fireEvent, 64),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Close stops the Reaper's goroutine. Pending timers still fire, but their
// events are dropped unprocessed; callers should stop relying on a Reaper
// before closing it.
func (r *Reaper) Close() { close(r.done) }

func (r *Reaper) run() {
	timers := make(map[string]*time.Timer)
	for {
		select {
		case fn := <-r.mailbox:
			fn(timers)
		case ev := <-r.fires:
			delete(timers, timerKey(ev.role, ev.userID))
			r.fire(ev)
		case <-r.done:
			return
		}
	}
}

func timerKey(role wire.UserRole, userID string) string { return string(role) + ":" + userID }

// ConnectionClosed starts (or resets) userID's grace-window timer.
// Called by the coordinator when a peer channel reports
// transport closure.
func (r *Reaper) ConnectionClosed(role wire.UserRole, userID string) {
	reply := make(chan struct{})
	r.mailbox <- func(timers map[string]*time.Timer) {
		key := timerKey(role, userID)
		if existing, ok := timers[key]; ok {
			existing.Stop()
		}
		scheduledAt := time.Now()
		timers[key] = time.AfterFunc(r.tReap, func() {
			select {
			case r.fires <- fireEvent{role: role, userID: userID, scheduledAt: scheduledAt}:
			case <-r.done:
			}
		})
		close(reply)
	}
	<-reply
}

func (r *Reaper) fire(ev fireEvent) {
	removed, cancelled := r.store.CheckReap(ev.role, ev.userID, ev.scheduledAt)
	if !removed {
		r.log.Info("reap skipped, user reconnected since disconnect", map[string]any{"user_id": ev.userID, "role": string(ev.role)})
		return
	}
	r.log.Info("user reaped", map[string]any{"user_id": ev.userID, "role": string(ev.role), "orders_cancelled": len(cancelled)})
	for _, o := range cancelled {
		dto := o.DTO()
		if err := r.notify.Send(o.ClientID, "OrderFinalized", wire.OrderFinalized{Order: dto}); err != nil {
			r.log.Warn("notify client of reap cancellation failed", map[string]any{"client_id": o.ClientID, "error": err.Error()})
		}
		if err := r.notify.Send(o.RestaurantID, "CancelOrder", wire.CancelOrder{OrderID: o.OrderID, Reason: wire.ReasonUserDisconnected}); err != nil {
			r.log.Warn("notify restaurant of reap cancellation failed", map[string]any{"restaurant_id": o.RestaurantID, "error": err.Error()})
		}
	}
}
