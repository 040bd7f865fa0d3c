package ring

import (
	"context"
	"sort"
	"time"

	"github.com/foodmesh/core/internal/config"
	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// state is the Manager's private, single-threaded view of ring topology
// and leadership, owned exclusively by the mailbox goroutine — the same
// discipline internal/store.tables uses.
type state struct {
	self       wire.Endpoint
	all        []wire.Endpoint // sorted, includes self
	leader     wire.Endpoint
	haveLeader bool
	lastPongAt time.Time
}

func (s *state) predecessor() (wire.Endpoint, bool) {
	if len(s.all) < 2 {
		return wire.Endpoint{}, false
	}
	i := s.selfIndex()
	return s.all[(i-1+len(s.all))%len(s.all)], true
}

func (s *state) successor() (wire.Endpoint, bool) {
	if len(s.all) < 2 {
		return wire.Endpoint{}, false
	}
	i := s.selfIndex()
	return s.all[(i+1)%len(s.all)], true
}

func (s *state) selfIndex() int {
	for i, e := range s.all {
		if e.Equal(s.self) {
			return i
		}
	}
	return 0
}

func (s *state) isLeader() bool {
	return s.haveLeader && s.leader.Equal(s.self)
}

// Manager runs the ring's election, heartbeat, and replication-pull logic
// as a single-threaded agent. Every exported method posts a
// closure to the mailbox and blocks for the result; the mailbox goroutine
// is the only one that ever touches state directly.
type Manager struct {
	self wire.Endpoint
	all  []wire.Endpoint // sorted, includes self

	cfg     config.Config
	store   *store.Store
	log     *corelog.Logger
	mailbox chan func(*state)
	done    chan struct{}

	onLeaderChange func(wire.Endpoint)
}

// New builds a Manager for replica self among the full static endpoint set
// endpoints (self must be a member). The Manager does not start its
// goroutines until Start is called.
func New(self wire.Endpoint, endpoints []wire.Endpoint, st *store.Store, cfg config.Config) *Manager {
	all := append([]wire.Endpoint(nil), endpoints...)
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })

	return &Manager{
		self:    self,
		all:     all,
		cfg:     cfg,
		store:   st,
		log:     corelog.New("ring"),
		mailbox: make(chan func(*state), 64),
		done:    make(chan struct{}),
	}
}

// OnLeaderChange registers a callback invoked (from the mailbox goroutine —
// keep it fast) whenever this replica observes a new leader, letting the
// coordinator update its RetryLater routing.
func (m *Manager) OnLeaderChange(f func(wire.Endpoint)) { m.onLeaderChange = f }

// Start launches the mailbox loop, runs initial leader discovery
// synchronously, then starts the heartbeat and replication tickers in the
// background. It returns once discovery has settled on a leader (possibly
// self).
func (m *Manager) Start(ctx context.Context) {
	go m.run()
	m.discover(ctx)
	go m.heartbeatLoop(ctx)
	go m.replicationLoop(ctx)
}

func (m *Manager) run() {
	s := &state{self: m.self, all: m.all}
	for {
		select {
		case fn := <-m.mailbox:
			fn(s)
		case <-m.done:
			return
		}
	}
}

// Close stops the Manager's goroutine. Background tickers observe ctx
// cancellation independently and should be stopped via the same context
// passed to Start.
func (m *Manager) Close() { close(m.done) }

func (m *Manager) do(fn func(s *state)) {
	reply := make(chan struct{})
	m.mailbox <- func(s *state) {
		fn(s)
		close(reply)
	}
	<-reply
}

func query[T any](m *Manager, fn func(s *state) T) T {
	reply := make(chan T, 1)
	m.mailbox <- func(s *state) {
		reply <- fn(s)
	}
	return <-reply
}

type endpointResult struct {
	ep wire.Endpoint
	ok bool
}

func queryPredecessor(m *Manager) (wire.Endpoint, bool) {
	r := query(m, func(s *state) endpointResult { ep, ok := s.predecessor(); return endpointResult{ep, ok} })
	return r.ep, r.ok
}

// Leader returns the currently known leader endpoint, if any.
func (m *Manager) Leader() (wire.Endpoint, bool) {
	type result struct {
		ep wire.Endpoint
		ok bool
	}
	r := query(m, func(s *state) result { return result{s.leader, s.haveLeader} })
	return r.ep, r.ok
}

// IsLeader reports whether this replica currently believes it is the
// leader.
func (m *Manager) IsLeader() bool {
	return query(m, func(s *state) bool { return s.isLeader() })
}

// Self returns this replica's own endpoint.
func (m *Manager) Self() wire.Endpoint { return m.self }

func (m *Manager) setLeader(s *state, leader wire.Endpoint) {
	changed := !s.haveLeader || !s.leader.Equal(leader)
	s.haveLeader = true
	s.leader = leader
	if changed {
		m.log.Info("leader changed", map[string]any{"leader": leader.String(), "self": s.self.String()})
		if m.onLeaderChange != nil {
			m.onLeaderChange(leader)
		}
	}
}

// Dispatch handles one inbound ring-control frame (already decoded by
// internal/wire) and returns the reply to send back, if any. The replica's
// connection handler calls this for every frame whose tag belongs to the
// ring catalog; see handlers.go for the tag-by-tag logic.
func (m *Manager) Dispatch(tag string, msg any) (replyTag string, reply any, hasReply bool) {
	type result struct {
		tag      string
		reply    any
		hasReply bool
	}
	r := query(m, func(s *state) result {
		rt, rp, ok := m.handle(s, tag, msg)
		return result{rt, rp, ok}
	})
	return r.tag, r.reply, r.hasReply
}

// IsRingTag reports whether tag belongs to the ring-control message
// catalog (the "Ring control" and "Replication" message groups), the
// routing test the replica's connection handler uses to decide between
// Manager.Dispatch and coordinator dispatch.
func IsRingTag(tag string) bool {
	switch tag {
	case "WhoIsLeader", "LeaderIs", "LeaderElection", "Ping", "Pong",
		"RequestNewUpdates", "Updates", "ApplyUpdates",
		"RequestAllStorage", "StorageSnapshot":
		return true
	default:
		return false
	}
}
