// Package transport implements the Connection Acceptor and Peer Channel
// components: accepting inbound TCP connections and wrapping every
// connection, inbound or outbound, in a PeerChannel that frames messages
// with internal/wire and exposes a bounded outbound queue.
//
// Shaped after an HTTP request/response transport idiom (PostJSON/GetJSON,
// a Listen-and-Serve/Shutdown lifecycle) generalized from
// request/response-per-call to a persistent duplex stream, since the
// ring's predecessor/successor links and the leader's push traffic to
// users don't fit a call-and-return shape.
package transport
