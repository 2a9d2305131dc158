// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Config configures a Ledger.
type Config struct {
	// RotationInterval is the number of entries per shard before rotation.
	// Default: DefaultRotationInterval (250).
	RotationInterval int

	// OnFinalize is invoked with each shard immediately after it is sealed,
	// while the ledger lock is still held. Used to persist finalized shards
	// in the same order they are sealed. May be nil.
	//
	// The callback must not call back into the ledger.
	OnFinalize func(*Shard)
}

// Ledger is the append-only hash-chained operation record.
//
// # Description
//
// Ledger owns all shard state: the archive of finalized shards, the single
// open shard, and the global operation counter. Every mutation (append and
// the rotation it may trigger) happens under one mutex, which is what makes
// the global hash a deterministic function of the append order.
//
// # Thread Safety
//
// Safe for concurrent use. Reads take a shared lock and never block writers
// indefinitely.
type Ledger struct {
	mu        sync.RWMutex
	interval  int
	finalized []*Shard
	open      *Shard
	opCounter uint64
	lastChain string
	onFinal   func(*Shard)
}

// NewLedger creates an empty ledger with shard 0 open at sequence 0.
func NewLedger(cfg Config) *Ledger {
	interval := cfg.RotationInterval
	if interval <= 0 {
		interval = DefaultRotationInterval
	}
	return &Ledger{
		interval: interval,
		open:     newShard(0, 0),
		onFinal:  cfg.OnFinalize,
	}
}

// Append serializes the payload, assigns the next sequence number, and routes
// the entry into the open shard. If the open shard reaches the rotation
// interval it is finalized and a new shard opened, atomically with this
// append.
//
// Append never fails for a serializable payload; a serialization failure is
// returned and nothing is appended.
func (l *Ledger) Append(operation string, payload any) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := newEntry(l.opCounter, operation, payload)
	if err != nil {
		return nil, err
	}
	entry.ChainHash = chainHash(entry.OperationHash, l.lastChain)
	if err := l.open.add(entry); err != nil {
		return nil, fmt.Errorf("routing entry into shard %d: %w", l.open.ShardID, err)
	}
	l.opCounter++
	l.lastChain = entry.ChainHash

	if len(l.open.Entries) >= l.interval {
		l.rotateLocked()
	}
	return entry, nil
}

// rotateLocked seals the open shard and opens the next one.
// Caller must hold l.mu.
func (l *Ledger) rotateLocked() {
	l.open.finalize()
	sealed := l.open
	l.finalized = append(l.finalized, sealed)
	l.open = newShard(sealed.ShardID+1, l.opCounter)
	if l.onFinal != nil {
		l.onFinal(sealed)
	}
}

// ComputeGlobalHash digests the full ledger state: finalized shard hashes
// oldest to newest, then the open shard's entry hashes in append order.
//
// The hash is recomputed from scratch on every call. There is no incremental
// cache to fall out of sync with the shards.
func (l *Ledger) ComputeGlobalHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return globalHash(l.finalized, l.open.Entries)
}

// VerifyAncestry reports whether hash was ever a real GlobalHash value of
// this ledger: it walks the shard archive and replays the global hash at
// every historical entry boundary (including the empty ledger and the
// current state), comparing each against hash.
//
// This is the rollback engine's defense against forged checkpoint hashes: a
// hash that never occurred in this ledger's history is rejected regardless
// of how plausible it looks.
func (l *Ledger) VerifyAncestry(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sealedHashes []string
	if globalHashOf(sealedHashes, nil) == hash {
		return true
	}
	replay := func(entries []*Entry, sealed []string) bool {
		var prefix []string
		for _, e := range entries {
			prefix = append(prefix, e.ChainHash)
			if globalHashOf(sealed, prefix) == hash {
				return true
			}
		}
		return false
	}
	for _, s := range l.finalized {
		// States while this shard was the open shard. The full-shard prefix
		// is excluded: rotation seals the shard atomically with its final
		// append, so "full but still open" never surfaced as a global hash.
		if replay(s.Entries[:len(s.Entries)-1], sealedHashes) {
			return true
		}
		// State immediately after this shard was sealed.
		sealedHashes = append(sealedHashes, s.ShardHash)
		if globalHashOf(sealedHashes, nil) == hash {
			return true
		}
	}
	return replay(l.open.Entries, sealedHashes)
}

// Recent returns up to n most recent entries, newest last. Never mutates.
func (l *Ledger) Recent(n int) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.allLocked()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// All returns every entry in append order.
func (l *Ledger) All() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allLocked()
}

func (l *Ledger) allLocked() []*Entry {
	out := make([]*Entry, 0, int(l.opCounter))
	for _, s := range l.finalized {
		out = append(out, s.Entries...)
	}
	out = append(out, l.open.Entries...)
	return out
}

// FinalizedShards returns the sealed shards oldest to newest. The returned
// slice is a copy; the shards themselves are immutable.
func (l *Ledger) FinalizedShards() []*Shard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Shard, len(l.finalized))
	copy(out, l.finalized)
	return out
}

// OpenShardSize returns the entry count of the current open shard.
func (l *Ledger) OpenShardSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open.Entries)
}

// TotalOperations returns the global operation counter.
func (l *Ledger) TotalOperations() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.opCounter
}

// LoadShards seeds the ledger from previously persisted finalized shards,
// by re-verifying each shard hash and rebuilding the operation counter.
// Only valid on an empty ledger.
func (l *Ledger) LoadShards(shards []*Shard) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.opCounter != 0 || len(l.finalized) != 0 {
		return fmt.Errorf("ledger is not empty")
	}
	for i, s := range shards {
		if uint64(i) != s.ShardID {
			return fmt.Errorf("shard %d out of order at position %d", s.ShardID, i)
		}
		// A finalized shard is only ever sealed with entries in it; an empty
		// one carries a valid hash over an empty chain but cannot have come
		// from this ledger.
		if len(s.Entries) == 0 {
			return fmt.Errorf("shard %d is finalized but has no entries", s.ShardID)
		}
		if !s.Verify() {
			return fmt.Errorf("shard %d failed hash verification", s.ShardID)
		}
		l.finalized = append(l.finalized, s)
		l.opCounter = s.LastOperationSeq + 1
		l.lastChain = s.Entries[len(s.Entries)-1].ChainHash
	}
	l.open = newShard(uint64(len(shards)), l.opCounter)
	return nil
}

// globalHash digests sealed shards then open entries.
func globalHash(finalized []*Shard, open []*Entry) string {
	h := sha256.New()
	for _, s := range finalized {
		h.Write([]byte(s.ShardHash))
	}
	for _, e := range open {
		h.Write([]byte(e.ChainHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// globalHashOf is the string-slice form used by ancestry replay.
func globalHashOf(sealedHashes, openHashes []string) string {
	h := sha256.New()
	for _, s := range sealedHashes {
		h.Write([]byte(s))
	}
	for _, e := range openHashes {
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}
