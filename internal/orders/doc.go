// Package orders implements the Order Service component: the order state
// machine, payment authorization/capture, and the courier-offer
// arbitration that the store's single-threaded execution makes into a
// centralized mutual-exclusion point.
//
// The service holds no primary order state of its own — the store owns
// that, and is authoritative — but it does own one piece of local
// bookkeeping the store has no business knowing about: which couriers are
// currently outstanding on an offer round, and that round's retry timer.
// That bookkeeping is the Service agent's mailbox state, built the same
// way as internal/reaper's per-user timer map: a goroutine-owned map plus
// a separate "fires" channel for cancelable timer events.
//
// Handle's dispatch table and the handlers it calls are shaped like
// internal/ring.Manager.Dispatch/handle: both run entirely inside the
// owning agent's own goroutine, so handlers read and mutate the offer
// bookkeeping directly rather than re-entering the mailbox. The one
// exception is the payment authority round trip, which is genuine
// unbounded I/O and so runs in its own goroutine, posting its result back
// in with a fresh mailbox call once it completes — the same shape
// internal/reaper's timer firings use to re-enter the agent from outside
// its own goroutine.
package orders
