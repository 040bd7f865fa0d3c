package ring

import (
	"time"

	"github.com/foodmesh/core/internal/transport"
)

// ErrRPCTimeout is returned by call when no reply arrives within the given
// deadline.
var ErrRPCTimeout = transport.ErrRPCTimeout

// call is the ring's one-shot dial-send-read-close RPC, used for all ring
// control traffic that expects a reply (WhoIsLeader, Ping, replication
// pulls, snapshot requests). See doc.go for why ring control traffic uses
// one-shot connections rather than the persistent PeerChannel role.
func call(addr, tag string, req any, timeout time.Duration) (string, any, error) {
	return transport.Call(addr, tag, req, timeout)
}

// notify is the fire-and-forget counterpart, used for election vector
// forwarding and LeaderIs broadcasts.
func notify(addr, tag string, msg any) error {
	return transport.Notify(addr, tag, msg)
}
