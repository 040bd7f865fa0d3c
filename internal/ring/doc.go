// Package ring implements the Ring Manager component: the total order
// over replica endpoints, leader election, heartbeat-based failure
// detection, and the pull-based replication loop.
//
// Shaped like a periodic ticker plus callback-on-state-change health
// monitor paired with ownership bookkeeping keyed by a stable comparator,
// generalized from HTTP polling of a /health endpoint and hash-based
// shard assignment to the ring's own control messages and endpoint total
// order.
//
// Architecture:
//
//	 every other endpoint         Manager (single-threaded agent)
//	      WhoIsLeader  ───────────►  mailbox ─► state{leader, topology, ...}
//	      Ping/Pong    ───────────►
//	      LeaderElection ─────────►
//	      RequestNewUpdates ──────►                      predecessor
//	                                        pull loop ──────────────►
//	                                        heartbeat loop ─► leader
//
// A Manager runs its own goroutine owning a `state` value exactly the way
// internal/store.Store owns `tables`: every external interaction is a
// closure posted to a mailbox channel, so election, heartbeat, and
// replication logic never race each other even though they are driven by
// independent tickers and independent inbound connections.
//
// Ring control messages (WhoIsLeader, Ping, LeaderElection, LeaderIs,
// RequestNewUpdates/Updates, RequestAllStorage/StorageSnapshot) travel over
// short-lived, one-request-one-reply connections dialed fresh per call —
// the same "one call, one round trip" shape as a plain request/response
// RPC, just carried over a framed TCP connection instead of an HTTP
// request. This is deliberately distinct from internal/transport's
// other use (the Connection Acceptor's persistent PeerChannel for
// external user connections, which receive unsolicited pushes at arbitrary
// times and must stay open): ring control traffic is a poll, not a stream.
package ring
