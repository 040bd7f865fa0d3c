package ring

import (
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// handle is the ring-control tag dispatch table, run inside the mailbox
// goroutine via Manager.Dispatch so every handler below can read/mutate
// state without synchronization.
func (m *Manager) handle(s *state, tag string, msg any) (replyTag string, reply any, hasReply bool) {
	switch tag {
	case "WhoIsLeader":
		if s.haveLeader {
			return "LeaderIs", wire.LeaderIs{Leader: s.leader}, true
		}
		return "", nil, false

	case "LeaderIs":
		m.setLeader(s, msg.(wire.LeaderIs).Leader)
		return "", nil, false

	case "LeaderElection":
		m.handleLeaderElection(s, msg.(wire.LeaderElection).Vector)
		return "", nil, false

	case "Ping":
		return m.handlePing()

	case "Pong":
		s.lastPongAt = time.Now()
		return "", nil, false

	case "RequestNewUpdates":
		return m.handleRequestNewUpdates(msg.(wire.RequestNewUpdates))

	case "RequestAllStorage":
		return m.handleRequestAllStorage()

	default:
		return "", nil, false
	}
}
