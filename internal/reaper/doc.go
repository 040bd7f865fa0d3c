// Package reaper implements the Reaper component: deferred removal of a
// user whose connection closed and did not reconnect within T_reap, plus
// the in-flight-order disposition that goes with it.
//
// Shaped like a periodic health-monitor ticker, generalized from "poll
// every node on an interval" to "start one deadline timer per
// disconnected user and let it fire once". A reconnect does not cancel the
// timer: when it fires, the store compares the user's last-seen time with
// the time the timer was scheduled and keeps a user who came back. The
// timer is built the same way internal/ring's election timers are: its
// firing posts a message to the owning agent's mailbox.
package reaper
