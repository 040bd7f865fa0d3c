package transport

import (
	"net"

	"github.com/foodmesh/core/internal/corelog"
)

// Acceptor accepts inbound connections and hands each one off as a
// PeerChannel. It does not know or care what role the far end plays —
// that is determined by the first frame the coordinator reads off the
// resulting PeerChannel.
type Acceptor struct {
	listener net.Listener
	log      *corelog.Logger
}

// Listen binds addr ("host:port" or ":port") and returns an Acceptor ready
// to hand off inbound connections.
func Listen(addr string) (*Acceptor, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{listener: l, log: corelog.New("transport")}, nil
}

// Addr returns the bound address, useful when addr was ":0".
func (a *Acceptor) Addr() net.Addr { return a.listener.Addr() }

// Accept blocks for the next inbound connection and returns it wrapped in a
// PeerChannel. Returns an error once the listener is closed.
func (a *Acceptor) Accept() (*PeerChannel, error) {
	conn, err := a.listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewPeerChannel(conn), nil
}

// Serve loops Accept, invoking onConnect for every inbound PeerChannel in
// its own goroutine, until the listener closes.
func (a *Acceptor) Serve(onConnect func(pc *PeerChannel)) error {
	for {
		pc, err := a.Accept()
		if err != nil {
			return err
		}
		go onConnect(pc)
	}
}

// Close stops accepting new connections.
func (a *Acceptor) Close() error { return a.listener.Close() }

// Dial connects to addr and wraps the resulting connection in a
// PeerChannel, the outbound counterpart to Accept.
func Dial(addr string) (*PeerChannel, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewPeerChannel(conn), nil
}
