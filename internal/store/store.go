package store

import "github.com/foodmesh/core/internal/corelog"

// Reader is the read-only view of the tables a Transact closure receives.
// Every accessor returns a defensive copy, the same discipline
// internal/storage.MemoryStore uses on every Get, so a closure can never
// reach back into the live tables after Transact returns.
type Reader interface {
	Client(id string) (Client, bool)
	Restaurant(id string) (Restaurant, bool)
	Courier(id string) (Courier, bool)
	Order(id uint64) (Order, bool)
	Restaurants() []Restaurant
	Couriers() []Courier
	Orders() []Order
}

type tableReader struct{ t *tables }

func (r tableReader) Client(id string) (Client, bool) {
	c, ok := r.t.clients[id]
	if !ok {
		return Client{}, false
	}
	return c.clone(), true
}

func (r tableReader) Restaurant(id string) (Restaurant, bool) {
	rr, ok := r.t.restaurants[id]
	if !ok {
		return Restaurant{}, false
	}
	return rr.clone(), true
}

func (r tableReader) Courier(id string) (Courier, bool) {
	c, ok := r.t.couriers[id]
	if !ok {
		return Courier{}, false
	}
	return c.clone(), true
}

func (r tableReader) Order(id uint64) (Order, bool) {
	o, ok := r.t.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

func (r tableReader) Restaurants() []Restaurant {
	out := make([]Restaurant, 0, len(r.t.restaurants))
	for _, rr := range r.t.restaurants {
		out = append(out, rr.clone())
	}
	return out
}

func (r tableReader) Couriers() []Courier {
	out := make([]Courier, 0, len(r.t.couriers))
	for _, c := range r.t.couriers {
		out = append(out, c.clone())
	}
	return out
}

func (r tableReader) Orders() []Order {
	out := make([]Order, 0, len(r.t.orders))
	for _, o := range r.t.orders {
		out = append(out, o.clone())
	}
	return out
}

// Store is the single-threaded agent owning the four entity tables and the
// operation log. All access goes through its exported methods, which run a
// closure on the owning goroutine and block for the result — see the
// package doc for why this replaces a plain mutex.
type Store struct {
	mailbox chan func(t *tables)
	done    chan struct{}
	log     *corelog.Logger
}

// New starts a Store's goroutine and returns a handle to it.
func New() *Store {
	s := &Store{
		mailbox: make(chan func(t *tables), 64),
		done:    make(chan struct{}),
		log:     corelog.New("store"),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	t := newTables()
	for {
		select {
		case fn := <-s.mailbox:
			fn(t)
		case <-s.done:
			return
		}
	}
}

// Close stops the Store's goroutine. Pending calls in flight when Close is
// invoked will block forever, so callers should stop issuing calls before
// closing.
func (s *Store) Close() { close(s.done) }

// Transact is the store's single primitive for atomic read-then-mutate
// operations: fn observes a consistent snapshot of the tables through
// Reader and returns the mutations that should result. When the mutations
// are non-empty they are applied and assigned leader log indices, in
// order, with nothing else interleaving — a single store message,
// serialized by the store's single-threaded execution. Call only on the
// leader's store: a non-empty result from a
// follower would assign indices the leader never sanctioned.
func (s *Store) Transact(fn func(r Reader) []Mutation) []LogEntry {
	reply := make(chan []LogEntry, 1)
	s.mailbox <- func(t *tables) {
		muts := fn(tableReader{t: t})
		entries := make([]LogEntry, 0, len(muts))
		for _, m := range muts {
			entries = append(entries, appendLeaderEntry(t, m))
		}
		reply <- entries
	}
	return <-reply
}

// View runs fn against a read-only snapshot without producing any log
// entries, for queries that never mutate (locator lookups, health reads).
func (s *Store) View(fn func(r Reader)) {
	reply := make(chan struct{})
	s.mailbox <- func(t *tables) {
		fn(tableReader{t: t})
		close(reply)
	}
	<-reply
}

// EntriesFrom answers the predecessor side of RequestNewUpdates: every log
// entry at or above minIndex. Any replica can serve this, not just the
// leader — it is whatever this replica's own log currently holds.
func (s *Store) EntriesFrom(minIndex uint64) []LogEntry {
	reply := make(chan []LogEntry, 1)
	s.mailbox <- func(t *tables) {
		reply <- entriesFrom(t, minIndex)
	}
	return <-reply
}

// SmallestIndex returns the lowest index currently held in this replica's
// log, or 0 if the log is empty. A replica pulling from its predecessor
// sends this as RequestNewUpdates' min_index, telling the predecessor
// exactly how far back it still needs entries from.
func (s *Store) SmallestIndex() uint64 {
	reply := make(chan uint64, 1)
	s.mailbox <- func(t *tables) {
		min := uint64(0)
		first := true
		for idx := range t.log {
			if first || idx < min {
				min = idx
				first = false
			}
		}
		reply <- min
	}
	return <-reply
}

// ApplyReplicatedUpdates performs the three-way reconciliation against
// entries pulled from this replica's predecessor. isLeader selects
// the leader-prunes-confirmed-entries branch versus the follower's
// apply-new/no-op/prune-gone branch.
func (s *Store) ApplyReplicatedUpdates(entries []LogEntry, isLeader bool) {
	reply := make(chan struct{})
	s.mailbox <- func(t *tables) {
		if isLeader {
			reconcileAsLeader(t, entries)
		} else {
			reconcileAsFollower(t, entries)
		}
		close(reply)
	}
	<-reply
}

// Snapshot answers RequestAllStorage: a mutation sequence reconstructing
// this replica's current state, plus its current log, next index, and next
// order id, verbatim, for a joining replica's cold start.
func (s *Store) Snapshot() (reconstructionMuts []Mutation, log []LogEntry, nextIndex uint64, nextOrderID uint64) {
	type result struct {
		recon       []Mutation
		log         []LogEntry
		next        uint64
		nextOrderID uint64
	}
	reply := make(chan result, 1)
	s.mailbox <- func(t *tables) {
		log := make([]LogEntry, 0, len(t.log))
		for _, e := range t.log {
			log = append(log, e)
		}
		reply <- result{recon: reconstruction(t), log: log, next: t.nextIndex, nextOrderID: t.nextOrderID}
	}
	r := <-reply
	return r.recon, r.log, r.next, r.nextOrderID
}

// InstallSnapshot resets this replica's tables to empty, applies the
// reconstruction mutations in order, and installs the log, next index, and
// next order id verbatim. A joining replica MUST complete this before it
// is allowed to participate in any
// replication pull: installing the log here, atomically with the
// reconstructed state, is what makes that ordering possible to enforce at
// the call site. The order-id counter travels alongside so a replica that
// later becomes leader never reassigns an id a predecessor already used.
func (s *Store) InstallSnapshot(reconstructionMuts []Mutation, log []LogEntry, nextIndex uint64, nextOrderID uint64) {
	reply := make(chan struct{})
	s.mailbox <- func(t *tables) {
		*t = *newTables()
		for _, m := range reconstructionMuts {
			m.Apply(t)
		}
		for _, e := range log {
			t.log[e.Index] = e
		}
		t.nextIndex = nextIndex
		t.nextOrderID = nextOrderID
		close(reply)
	}
	<-reply
}

// PlaceOrder assigns the next monotone, leader-clock order id and
// atomically creates the order with it, returning the
// finalized order and the resulting log entry. Call only on the leader's
// store, same restriction as Transact.
func (s *Store) PlaceOrder(o Order) (Order, LogEntry) {
	type result struct {
		order Order
		entry LogEntry
	}
	reply := make(chan result, 1)
	s.mailbox <- func(t *tables) {
		o.OrderID = t.nextOrderID
		t.nextOrderID++
		entry := appendLeaderEntry(t, AddOrder{Order: o})
		reply <- result{order: o, entry: entry}
	}
	r := <-reply
	return r.order, r.entry
}
