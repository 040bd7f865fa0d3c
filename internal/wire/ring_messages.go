package wire

func init() {
	Register("WhoIsLeader", WhoIsLeader{})
	Register("LeaderIs", LeaderIs{})
	Register("LeaderElection", LeaderElection{})
	Register("Ping", Ping{})
	Register("Pong", Pong{})
}

// WhoIsLeader is sent by a newly started replica to every other endpoint it
// knows about during the discovery window.
type WhoIsLeader struct{}

// LeaderIs answers WhoIsLeader, and is also broadcast by the terminator of a
// LeaderElection round to every ring peer.
type LeaderIs struct {
	Leader Endpoint `json:"leader"`
}

// LeaderElection carries the accumulating vector of endpoints as it travels
// around the ring. A recipient whose own endpoint already appears in Vector
// has seen the vector complete a full lap: it picks the minimum endpoint as
// leader and stops propagation.
type LeaderElection struct {
	Vector []Endpoint `json:"vector"`
}

// Ping is sent periodically by a follower to the leader as a heartbeat.
type Ping struct{}

// Pong answers Ping.
type Pong struct{}
