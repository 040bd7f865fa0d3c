package ring

import (
	"context"
	"time"

	"golang.org/x/exp/slices"

	"github.com/foodmesh/core/internal/wire"
)

// discover implements the startup discovery protocol: ask every other
// known endpoint WhoIsLeader, adopt the first LeaderIs reply, and
// self-declare leader if nothing answers within the discovery window.
func (m *Manager) discover(ctx context.Context) {
	type found struct {
		leader wire.Endpoint
		ok     bool
	}
	results := make(chan found, len(m.all))

	others := 0
	for _, ep := range m.all {
		if ep.Equal(m.self) {
			continue
		}
		others++
		go func(ep wire.Endpoint) {
			_, msg, err := call(ep.String(), "WhoIsLeader", wire.WhoIsLeader{}, m.cfg.DiscoveryWindow)
			if err != nil {
				results <- found{}
				return
			}
			if reply, ok := msg.(wire.LeaderIs); ok {
				results <- found{leader: reply.Leader, ok: true}
				return
			}
			results <- found{}
		}(ep)
	}

	if others == 0 {
		m.do(func(s *state) { m.setLeader(s, s.self) })
		return
	}

	deadline := time.After(m.cfg.DiscoveryWindow)
	for i := 0; i < others; i++ {
		select {
		case r := <-results:
			if r.ok {
				m.do(func(s *state) { m.setLeader(s, r.leader) })
				return
			}
		case <-deadline:
			i = others
		case <-ctx.Done():
			return
		}
	}

	// Nothing answered WhoIsLeader: either this is truly the first replica
	// up, or several replicas are booting concurrently and none of them
	// has a leader to report yet. Assume leadership provisionally so the
	// replica isn't stuck leaderless, but also run a real election round —
	// concurrent elections from every simultaneously-booting replica all
	// terminate on the same global minimum, so this
	// self-corrects a split-brain bootstrap without any extra protocol.
	m.do(func(s *state) {
		if !s.haveLeader {
			m.setLeader(s, s.self)
			m.initiateElection(s)
		}
	})
}

// initiateElection starts a new LeaderElection round: send
// LeaderElection([self]) to the successor. If there is no successor (a
// lone replica), it is trivially its own leader.
func (m *Manager) initiateElection(s *state) {
	succ, ok := s.successor()
	if !ok {
		m.setLeader(s, s.self)
		return
	}
	vec := []wire.Endpoint{s.self}
	go func() {
		if err := notify(succ.String(), "LeaderElection", wire.LeaderElection{Vector: vec}); err != nil {
			m.log.Warn("election forward failed", map[string]any{"successor": succ.String(), "error": err.Error()})
		}
	}()
}

// handleLeaderElection implements the per-recipient rule: if self already
// appears in the vector it has completed a full lap, so pick the minimum
// and broadcast LeaderIs; otherwise append self and forward to the
// successor.
func (m *Manager) handleLeaderElection(s *state, vec []wire.Endpoint) {
	if slices.ContainsFunc(vec, func(e wire.Endpoint) bool { return e.Equal(s.self) }) {
		min := slices.MinFunc(vec, func(a, b wire.Endpoint) int {
			if a.Less(b) {
				return -1
			}
			if b.Less(a) {
				return 1
			}
			return 0
		})
		m.setLeader(s, min)
		m.broadcastLeaderIs(s, min)
		return
	}

	next := append(append([]wire.Endpoint(nil), vec...), s.self)
	succ, ok := s.successor()
	if !ok {
		m.setLeader(s, s.self)
		return
	}
	go func() {
		if err := notify(succ.String(), "LeaderElection", wire.LeaderElection{Vector: next}); err != nil {
			m.log.Warn("election forward failed", map[string]any{"successor": succ.String(), "error": err.Error()})
		}
	}()
}

// broadcastLeaderIs announces leader to every other known endpoint, the
// terminator's half of the election round. Broadcasting (rather
// than relying on the vector continuing to travel) is what makes two
// concurrent elections converge on the same minimum in a bounded number of
// rounds: every live replica receives LeaderIs directly instead of waiting
// for a possibly-stale vector to reach it.
func (m *Manager) broadcastLeaderIs(s *state, leader wire.Endpoint) {
	for _, ep := range s.all {
		if ep.Equal(s.self) {
			continue
		}
		go func(ep wire.Endpoint) {
			if err := notify(ep.String(), "LeaderIs", wire.LeaderIs{Leader: leader}); err != nil {
				m.log.Warn("LeaderIs broadcast failed", map[string]any{"peer": ep.String(), "error": err.Error()})
			}
		}(ep)
	}
}
