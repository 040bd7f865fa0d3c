// Package coordinator implements the Coordinator & Peer Routing component:
// the bidirectional map between connected peers and their user ids,
// leader-only forwarding of business messages, registration, and
// connection-close handling.
//
// A registry keyed by connection identity (a user id bound at RegisterUser
// time) owned by a single-threaded mailbox agent rather than guarded by a
// mutex, dispatching inbound requests to the right
// subsystem and routing replies back out. Unlike a singleton control
// plane that never needs to care about its own leadership, this one runs
// on every replica and defers to internal/ring.Manager.IsLeader before
// doing anything business-facing, replying RetryLater on a follower.
package coordinator
