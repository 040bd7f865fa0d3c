package ring

import (
	"context"
	"time"

	"github.com/foodmesh/core/internal/store"
	"github.com/foodmesh/core/internal/wire"
)

// replicationLoop implements a cold-start snapshot pull if this replica
// has nothing yet, then periodic RequestNewUpdates pulls from the
// predecessor forever after. The pull doubles as the predecessor
// liveness check — a failed pull just means the next tick retries
// against whatever the current predecessor resolves to; ring
// membership here is static, so "reconnect to the predecessor-of-the-
// predecessor" reduces to "keep dialing the same address until it answers
// again."
func (m *Manager) replicationLoop(ctx context.Context) {
	if !m.coldStart(ctx) {
		return
	}

	ticker := time.NewTicker(m.cfg.ReplicationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.pullOnce()
		}
	}
}

// coldStart requests a full reconstruction from the predecessor if one
// exists; a solo ring (no predecessor) needs no snapshot. Returns false if
// ctx was cancelled while waiting.
func (m *Manager) coldStart(ctx context.Context) bool {
	_, hasPred := queryPredecessor(m)
	if !hasPred {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.done:
			return false
		default:
		}

		predecessor, _ := queryPredecessor(m)
		_, msg, err := call(predecessor.String(), "RequestAllStorage", wire.RequestAllStorage{}, m.cfg.ReplicationInterval*4)
		if err != nil {
			m.log.Warn("cold-start snapshot request failed, retrying", map[string]any{"predecessor": predecessor.String(), "error": err.Error()})
			time.Sleep(m.cfg.ReplicationInterval)
			continue
		}
		snap, ok := msg.(wire.StorageSnapshot)
		if !ok {
			time.Sleep(m.cfg.ReplicationInterval)
			continue
		}

		recon, err := fromWireMutations(snap.Reconstruction)
		if err != nil {
			m.log.Error("cold-start snapshot decode failed", err, nil)
			time.Sleep(m.cfg.ReplicationInterval)
			continue
		}
		log, err := fromWireLogEntries(snap.Log)
		if err != nil {
			m.log.Error("cold-start snapshot log decode failed", err, nil)
			time.Sleep(m.cfg.ReplicationInterval)
			continue
		}
		m.store.InstallSnapshot(recon, log, snap.NextIndex, snap.NextOrderID)
		return true
	}
}

func (m *Manager) pullOnce() {
	predecessor, hasPred := queryPredecessor(m)
	println("pullOnce self", m.self.String(), "predecessor", predecessor.String(), "hasPred", hasPred)
	if !hasPred {
		return
	}
	minIndex := m.store.SmallestIndex()
	_, msg, err := call(predecessor.String(), "RequestNewUpdates", wire.RequestNewUpdates{MinIndex: minIndex}, m.cfg.ReplicationInterval*2)
	if err != nil {
		m.log.Warn("replication pull failed", map[string]any{"predecessor": predecessor.String(), "error": err.Error()})
		return
	}
	updates, ok := msg.(wire.Updates)
	println("pullOnce self", m.self.String(), "minIndex", minIndex, "ok", ok, "numEntries", len(updates.Entries))
	if !ok {
		return
	}
	entries, err := fromWireLogEntries(updates.Entries)
	if err != nil {
		m.log.Error("replication pull decode failed", err, nil)
		return
	}
	println("pullOnce self", m.self.String(), "applying", len(entries), "isLeader", m.IsLeader())
	m.store.ApplyReplicatedUpdates(entries, m.IsLeader())
}

// handleRequestNewUpdates answers the predecessor side of a replication
// pull with every entry this replica's own log holds at or above MinIndex.
func (m *Manager) handleRequestNewUpdates(req wire.RequestNewUpdates) (string, any, bool) {
	entries := m.store.EntriesFrom(req.MinIndex)
	wireEntries, err := toWireLogEntries(entries)
	if err != nil {
		m.log.Error("encode replication entries failed", err, nil)
		return "Updates", wire.Updates{}, true
	}
	return "Updates", wire.Updates{Entries: wireEntries}, true
}

// handleRequestAllStorage answers a cold-start request with this replica's
// full reconstruction and log, verbatim.
func (m *Manager) handleRequestAllStorage() (string, any, bool) {
	recon, log, next, nextOrderID := m.store.Snapshot()
	wireRecon, err := toWireMutations(recon)
	if err != nil {
		m.log.Error("encode snapshot reconstruction failed", err, nil)
		return "StorageSnapshot", wire.StorageSnapshot{}, true
	}
	wireLog, err := toWireLogEntries(log)
	if err != nil {
		m.log.Error("encode snapshot log failed", err, nil)
		return "StorageSnapshot", wire.StorageSnapshot{}, true
	}
	return "StorageSnapshot", wire.StorageSnapshot{Reconstruction: wireRecon, Log: wireLog, NextIndex: next, NextOrderID: nextOrderID}, true
}

func toWireLogEntries(entries []store.LogEntry) ([]wire.LogEntry, error) {
	out := make([]wire.LogEntry, 0, len(entries))
	for _, e := range entries {
		env, err := store.EncodeMutation(e.Mutation)
		if err != nil {
			return nil, err
		}
		out = append(out, wire.LogEntry{Index: e.Index, Mutation: env})
	}
	return out, nil
}

func fromWireLogEntries(entries []wire.LogEntry) ([]store.LogEntry, error) {
	out := make([]store.LogEntry, 0, len(entries))
	for _, e := range entries {
		m, err := store.DecodeMutation(e.Mutation)
		if err != nil {
			return nil, err
		}
		out = append(out, store.LogEntry{Index: e.Index, Mutation: m})
	}
	return out, nil
}

func toWireMutations(muts []store.Mutation) ([]wire.MutationEnvelope, error) {
	out := make([]wire.MutationEnvelope, 0, len(muts))
	for _, m := range muts {
		env, err := store.EncodeMutation(m)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

func fromWireMutations(envs []wire.MutationEnvelope) ([]store.Mutation, error) {
	out := make([]store.Mutation, 0, len(envs))
	for _, env := range envs {
		m, err := store.DecodeMutation(env)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
