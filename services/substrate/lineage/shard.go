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
	"time"
)

// DefaultRotationInterval is the number of entries per shard before the shard
// is sealed and a new one opened.
const DefaultRotationInterval = 250

// Shard is a fixed-size segment of the ledger.
//
// A shard is mutable only while it is the single open shard. Finalization
// computes the shard hash, stamps FinalizedAt, and moves the shard to the
// immutable archive. Rotation happens strictly at the boundary of a completed
// append, never mid-operation.
type Shard struct {
	// ShardID is the monotonically increasing shard number (0-based).
	ShardID uint64 `json:"shard_id"`

	// FirstOperationSeq is the sequence number of the first entry this shard
	// may contain.
	FirstOperationSeq uint64 `json:"first_operation_seq"`

	// LastOperationSeq is the sequence number of the last entry appended.
	// Meaningful only once the shard holds at least one entry.
	LastOperationSeq uint64 `json:"last_operation_seq"`

	// Entries are the contained ledger entries in append order.
	Entries []*Entry `json:"entries"`

	// ShardHash is the digest over all contained entries' chain hashes, in
	// append order. Empty until the shard is finalized.
	ShardHash string `json:"shard_hash"`

	// CreatedAt is when the shard was opened.
	CreatedAt time.Time `json:"created_at"`

	// FinalizedAt is when the shard was sealed, nil while open.
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// ShardBoundsError reports an entry routed outside its shard's sequence
// range. This is a programming-contract violation: lineage writes must be
// serialized by the caller, so an out-of-range sequence can only mean the
// append path was bypassed.
type ShardBoundsError struct {
	ShardID  uint64
	FirstSeq uint64
	EntrySeq uint64
}

// Error implements the error interface.
func (e *ShardBoundsError) Error() string {
	return fmt.Sprintf("entry sequence %d precedes shard %d start %d",
		e.EntrySeq, e.ShardID, e.FirstSeq)
}

// newShard opens an empty shard starting at the given sequence number.
func newShard(id, firstSeq uint64) *Shard {
	return &Shard{
		ShardID:           id,
		FirstOperationSeq: firstSeq,
		Entries:           make([]*Entry, 0, DefaultRotationInterval),
		CreatedAt:         time.Now().UTC(),
	}
}

// add appends an entry to an open shard.
func (s *Shard) add(entry *Entry) error {
	if s.FinalizedAt != nil {
		return fmt.Errorf("shard %d is finalized", s.ShardID)
	}
	if entry.Sequence < s.FirstOperationSeq {
		return &ShardBoundsError{ShardID: s.ShardID, FirstSeq: s.FirstOperationSeq, EntrySeq: entry.Sequence}
	}
	s.Entries = append(s.Entries, entry)
	s.LastOperationSeq = entry.Sequence
	return nil
}

// finalize seals the shard: computes the shard hash and stamps FinalizedAt.
// The shard is immutable afterwards.
func (s *Shard) finalize() {
	s.ShardHash = hashEntryChain(s.Entries)
	now := time.Now().UTC()
	s.FinalizedAt = &now
}

// Finalized reports whether the shard has been sealed.
func (s *Shard) Finalized() bool {
	return s.FinalizedAt != nil
}

// Verify recomputes the shard hash from the contained entries and compares it
// to the stored value. Only meaningful on finalized shards.
func (s *Shard) Verify() bool {
	if s.FinalizedAt == nil {
		return false
	}
	return hashEntryChain(s.Entries) == s.ShardHash
}

// hashEntryChain digests the concatenation of entry chain hashes in append
// order.
func hashEntryChain(entries []*Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.ChainHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}
