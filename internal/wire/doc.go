// Package wire defines the on-the-wire message catalog for the food-delivery
// core and the framing used to carry it over a persistent TCP stream.
//
// # Overview
//
// Every message that crosses a process boundary — between replicas on the
// ring, or between a replica and an external client/restaurant/courier/
// payment-authority process — is wrapped in a single envelope type, Frame,
// and written one-per-line as UTF-8 JSON:
//
//	{"tag":"Ping","v":1,"payload":{}}
//	{"tag":"RequestThisOrder","v":1,"payload":{"dish":"Pepperoni", ...}}
//
// The tag selects which Go type the payload decodes into; Decode uses a
// registry (populated by every message file's init) to look the type up, so
// adding a new message only requires defining its struct and registering it.
//
// # Message groups
//
// Ring control (ring_messages.go): WhoIsLeader, LeaderIs, LeaderElection,
// Ping, Pong.
//
// Replication (replication_messages.go): RequestNewUpdates, Updates,
// ApplyUpdates, RequestAllStorage, StorageSnapshot.
//
// User lifecycle (lifecycle_messages.go): RegisterUser, RecoveredUserInfo,
// RetryLater, Shutdown.
//
// Client-facing (client_messages.go), restaurant-facing
// (restaurant_messages.go), courier-facing (courier_messages.go), and
// payment-authority (payment_messages.go) messages implement the
// catalog for those roles.
//
// # Framing
//
// Encode/Decode operate on bufio.Writer/bufio.Scanner so a PeerChannel can
// read frames off a long-lived net.Conn without knowing message boundaries
// in advance — an HTTP request/response model had the transport draw the
// boundary; a bare TCP stream needs the newline instead.
package wire
