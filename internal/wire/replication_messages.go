package wire

import "encoding/json"

func init() {
	Register("RequestNewUpdates", RequestNewUpdates{})
	Register("Updates", Updates{})
	Register("ApplyUpdates", ApplyUpdates{})
	Register("RequestAllStorage", RequestAllStorage{})
	Register("StorageSnapshot", StorageSnapshot{})
}

// MutationEnvelope is the tagged, self-describing encoding of one
// store.Mutation. wire does not know the concrete mutation types — store
// owns its own tag registry — so a mutation crosses the wire as a bare
// (tag, payload) pair, the same self-describing shape as Frame itself.
type MutationEnvelope struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// LogEntry is one entry of the replicated operation log: a leader-assigned
// monotonic index paired with the mutation it recorded.
type LogEntry struct {
	Index    uint64           `json:"index"`
	Mutation MutationEnvelope `json:"mutation"`
}

// RequestNewUpdates asks the predecessor for every log entry at or above
// MinIndex, the pull half of the replication protocol. It also
// doubles as a predecessor-liveness ping.
type RequestNewUpdates struct {
	MinIndex uint64 `json:"min_index"`
}

// Updates answers RequestNewUpdates with every log entry the predecessor
// holds at or above the requested index.
type Updates struct {
	Entries []LogEntry `json:"entries"`
}

// ApplyUpdates is handed from the requester's ring manager to its own store,
// which performs the three-way reconciliation.
type ApplyUpdates struct {
	Entries  []LogEntry `json:"entries"`
	FromSelf bool       `json:"from_self"`
}

// RequestAllStorage is sent by a replica with nothing to usefully delta
// against, asking its predecessor to synthesize a full reconstruction
// for a cold-start snapshot.
type RequestAllStorage struct{}

// StorageSnapshot answers RequestAllStorage with a mutation sequence that
// reconstructs the predecessor's current state when applied in order, plus
// its current log verbatim. A replica MUST install Log before participating
// in any pull, the log-GC soundness rule.
type StorageSnapshot struct {
	Reconstruction []MutationEnvelope `json:"reconstruction"`
	Log            []LogEntry         `json:"log"`
	NextIndex      uint64             `json:"next_index"`
	NextOrderID    uint64             `json:"next_order_id"`
}
