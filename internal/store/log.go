package store

import "sort"

// appendLeaderEntry applies mutation m locally and appends it to the log
// under the next leader-assigned index: the leader is the sole assigner
// of new indices.
func appendLeaderEntry(t *tables, m Mutation) LogEntry {
	entry := LogEntry{Index: t.nextIndex, Mutation: m}
	m.Apply(t)
	t.log[entry.Index] = entry
	t.nextIndex++
	return entry
}

// reconcileAsLeader implements the leader branch of pull-based
// replication: every entry the predecessor sent back has traveled the full
// ring and is now fully replicated, so the leader deletes it from its own
// log — there is nothing further to apply (the leader already applied it
// when it first appended). Entries the leader has already deleted are
// skipped.
func reconcileAsLeader(t *tables, entries []LogEntry) {
	for _, e := range entries {
		if _, stillHeld := t.log[e.Index]; !stillHeld {
			// Already GC'd locally — nothing to do, it's already gone from
			// every replica that matters.
			continue
		}
		// The leader still holds this index but it came back around the
		// ring, proving every follower has applied it: safe to collect.
		delete(t.log, e.Index)
	}
}

// reconcileAsFollower implements the follower branch: partition the
// predecessor's entries against the follower's own log into three
// disjoint sets — gone-upstream (prune locally too), already-known
// (no-op), and new (apply and record).
func reconcileAsFollower(t *tables, entries []LogEntry) {
	seen := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Index] = struct{}{}
		if _, known := t.log[e.Index]; known {
			continue // in both: no-op
		}
		// in map but not in own log: new entry, apply and record
		e.Mutation.Apply(t)
		t.log[e.Index] = e
		if e.Index >= t.nextIndex {
			t.nextIndex = e.Index + 1
		}
	}
	for idx := range t.log {
		if _, stillSent := seen[idx]; !stillSent {
			// in own log but not in predecessor's map: predecessor already
			// garbage-collected it, so collect it here too.
			delete(t.log, idx)
		}
	}
}

// entriesFrom returns every log entry at or above minIndex in ascending
// index order, the predecessor side of RequestNewUpdates/Updates.
func entriesFrom(t *tables, minIndex uint64) []LogEntry {
	out := make([]LogEntry, 0, len(t.log))
	for idx, e := range t.log {
		if idx >= minIndex {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// reconstruction synthesizes a mutation sequence that, applied in order
// against an empty store, reconstructs the current tables — the cold-start
// snapshot. One AddX mutation per entity, plus the mutations
// needed to restore set membership and assignment state that a bare AddX
// wouldn't carry (authorized/pending orders, courier assignment).
func reconstruction(t *tables) []Mutation {
	var muts []Mutation
	for _, c := range t.clients {
		muts = append(muts, AddClient{ClientID: c.ClientID, Position: c.Position})
		if c.ActiveOrderID != nil {
			muts = append(muts, SetClientActiveOrder{ClientID: c.ClientID, OrderID: c.ActiveOrderID})
		}
	}
	for _, r := range t.restaurants {
		muts = append(muts, AddRestaurant{RestaurantID: r.RestaurantID, Position: r.Position})
		for id := range r.AuthorizedOrders {
			muts = append(muts, AddAuthorizedOrderToRestaurant{RestaurantID: r.RestaurantID, OrderID: id})
		}
		for id := range r.PendingOrders {
			muts = append(muts, AddAuthorizedOrderToRestaurant{RestaurantID: r.RestaurantID, OrderID: id})
			muts = append(muts, MoveOrderToPending{RestaurantID: r.RestaurantID, OrderID: id})
		}
	}
	for _, c := range t.couriers {
		muts = append(muts, AddCourier{CourierID: c.CourierID, Position: c.Position})
		if c.Status != "" {
			muts = append(muts, SetCourierStatus{CourierID: c.CourierID, Status: c.Status})
		}
	}
	for _, o := range t.orders {
		ord := o.clone()
		var bound *Courier
		if o.CourierID != nil {
			if c, ok := t.couriers[*o.CourierID]; ok && c.CurrentOrderID != nil && *c.CurrentOrderID == o.OrderID {
				bound = c
				ord.CourierID = nil
			}
		}
		muts = append(muts, AddOrder{Order: ord})
		if bound != nil {
			clientID := ""
			if bound.CurrentClientID != nil {
				clientID = *bound.CurrentClientID
			}
			muts = append(muts, SetCourierForOrder{OrderID: o.OrderID, CourierID: *o.CourierID, ClientID: clientID})
			muts = append(muts, SetCourierStatus{CourierID: bound.CourierID, Status: bound.Status})
		}
	}
	return muts
}
