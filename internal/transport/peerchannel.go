package transport

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/foodmesh/core/internal/corelog"
	"github.com/foodmesh/core/internal/wire"
)

// DefaultOutboundQueueSize bounds a PeerChannel's outbound queue: peer
// channels hold bounded outbound queues, and when full the producer
// blocks.
const DefaultOutboundQueueSize = 256

// ErrClosed is returned by Send once the channel's connection has closed.
var ErrClosed = errors.New("transport: peer channel closed")

type outboundFrame struct {
	tag string
	msg any
}

// PeerChannel frames send/receive over one transport connection.
// Outbound messages are queued and written by a dedicated goroutine so
// Send never blocks on network I/O directly; inbound frames are delivered
// to a caller-supplied handler by Run, which blocks until the connection
// closes.
type PeerChannel struct {
	ID         string
	RemoteAddr string

	conn     net.Conn
	outbound chan outboundFrame
	closed   chan struct{}
	closeErr error
	once     sync.Once
	log      *corelog.Logger
}

// NewPeerChannel wraps conn in a PeerChannel with a bounded outbound queue
// and starts its write loop. The connection id is a uuid, used only for log
// correlation (internal/wire.Frame itself carries no connection identity).
func NewPeerChannel(conn net.Conn) *PeerChannel {
	pc := &PeerChannel{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		outbound:   make(chan outboundFrame, DefaultOutboundQueueSize),
		closed:     make(chan struct{}),
		log:        corelog.New("transport"),
	}
	go pc.writeLoop()
	return pc
}

// Send enqueues a message for delivery, blocking if the outbound queue is
// full, and returning ErrClosed if the channel has already closed.
func (pc *PeerChannel) Send(tag string, msg any) error {
	select {
	case pc.outbound <- outboundFrame{tag: tag, msg: msg}:
		return nil
	case <-pc.closed:
		return ErrClosed
	}
}

func (pc *PeerChannel) writeLoop() {
	w := bufio.NewWriter(pc.conn)
	for {
		select {
		case frame := <-pc.outbound:
			if err := wire.Encode(w, frame.tag, frame.msg); err != nil {
				pc.log.Warn("write failed, closing peer channel", map[string]any{
					"peer": pc.RemoteAddr, "id": pc.ID, "error": err.Error(),
				})
				pc.Close(err)
				return
			}
		case <-pc.closed:
			return
		}
	}
}

// Run reads frames until the connection closes or a read error occurs,
// decoding each with internal/wire and invoking onMessage with the tag and
// decoded payload. It returns the terminal error (io.EOF on clean close).
// Malformed frames are logged and dropped per the protocol violation
// policy — they do not terminate the loop by themselves; an
// unknown tag does, since wire.Decode cannot tell the caller what shape the
// payload has and the safest response to a protocol the reader cannot
// speak is to reset the connection.
func (pc *PeerChannel) Run(onMessage func(tag string, msg any)) error {
	scanner := wire.NewScanner(pc.conn)
	for {
		frame, err := wire.ReadFrame(scanner)
		if err != nil {
			pc.Close(err)
			return err
		}
		msg, err := wire.Unmarshal(frame)
		if err != nil {
			var unknown *wire.ErrUnknownTag
			if errors.As(err, &unknown) {
				pc.log.Error("unknown tag, resetting connection", err, map[string]any{"peer": pc.RemoteAddr})
				pc.Close(err)
				return err
			}
			pc.log.Warn("dropping malformed frame", map[string]any{"peer": pc.RemoteAddr, "error": err.Error()})
			continue
		}
		onMessage(frame.Tag, msg)
	}
}

// Close closes the underlying connection and stops the write loop. Safe to
// call multiple times and from multiple goroutines.
func (pc *PeerChannel) Close(err error) error {
	pc.once.Do(func() {
		pc.closeErr = err
		close(pc.closed)
	})
	return pc.conn.Close()
}

// Err returns the error that caused the channel to close, if any.
func (pc *PeerChannel) Err() error { return pc.closeErr }
