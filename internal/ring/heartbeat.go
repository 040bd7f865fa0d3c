package ring

import (
	"context"
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// heartbeatLoop pings the leader every PingInterval and triggers an
// election if T_leader elapses without a Pong.
func (m *Manager) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	m.do(func(s *state) { s.lastPongAt = time.Now() })

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.heartbeatTick(ctx)
		}
	}
}

func (m *Manager) heartbeatTick(ctx context.Context) {
	type target struct {
		leader wire.Endpoint
		self   bool
	}
	t := query(m, func(s *state) target {
		return target{leader: s.leader, self: s.isLeader()}
	})
	if t.self {
		return
	}

	_, msg, err := call(t.leader.String(), "Ping", wire.Ping{}, m.cfg.PingInterval)
	if err == nil {
		if _, ok := msg.(wire.Pong); ok {
			m.do(func(s *state) { s.lastPongAt = time.Now() })
			return
		}
	}

	expired := query(m, func(s *state) bool {
		return time.Since(s.lastPongAt) > m.cfg.TLeader
	})
	if expired {
		m.log.Warn("leader heartbeat timed out, initiating election", map[string]any{"leader": t.leader.String()})
		m.do(func(s *state) { m.initiateElection(s) })
	}
}

// handlePing answers an inbound heartbeat with Pong. Only meaningful when
// this replica believes itself leader, but answering unconditionally is
// harmless: a stale follower pinging the wrong node just gets a reply it
// will ignore once LeaderIs catches it up.
func (m *Manager) handlePing() (string, any, bool) {
	return "Pong", wire.Pong{}, true
}
