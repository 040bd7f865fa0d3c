package transport

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/foodmesh/core/internal/wire"
)

// ErrRPCTimeout is returned by Call when no reply frame arrives within the
// given deadline.
var ErrRPCTimeout = errors.New("transport: rpc timed out")

// Call dials addr, sends one (tag, req) frame, and blocks for the single
// reply frame, closing the connection either way. This is the one-shot
// dial-send-read-close idiom internal/ring and internal/payment both use for
// control-plane traffic that doesn't fit the persistent PeerChannel role —
// a one-call-one-connection style carried over from HTTP to framed TCP.
func Call(addr, tag string, req any, timeout time.Duration) (string, any, error) {
	pc, err := Dial(addr)
	if err != nil {
		return "", nil, err
	}
	defer pc.Close(nil)

	type result struct {
		tag string
		msg any
	}
	replies := make(chan result, 1)
	go pc.Run(func(rtag string, rmsg any) {
		select {
		case replies <- result{tag: rtag, msg: rmsg}:
		default:
		}
	})

	if err := pc.Send(tag, req); err != nil {
		return "", nil, err
	}

	select {
	case r := <-replies:
		return r.tag, r.msg, nil
	case <-time.After(timeout):
		return "", nil, ErrRPCTimeout
	}
}

// Notify dials addr, sends one (tag, msg) frame, and returns without waiting
// for any reply — used for fire-and-forget traffic like LeaderIs broadcasts
// and election vector forwarding.
func Notify(addr, tag string, msg any) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return wire.Encode(bufio.NewWriter(conn), tag, msg)
}
