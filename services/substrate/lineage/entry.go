// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lineage implements the append-only, hash-chained record of every
// mutating operation performed against the substrate.
//
// The ledger is partitioned into fixed-size shards. A shard is sealed
// (finalized) once it reaches the rotation interval; sealed shards are
// immutable and carry a shard hash over their entries, which makes historical
// segments independently verifiable. The global hash is a pure function of
// the full append order and is recomputed from scratch on every call so it
// can never desynchronize from a cached value.
//
// # Thread Safety
//
// All mutation flows through a single mutex on Ledger. Rotation is atomic
// with the append that triggers it: no observer ever sees a shard exceed the
// rotation interval, or two open shards.
package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is a single immutable ledger record.
//
// Once appended, an entry is owned exclusively by the shard that contains it
// and is never modified or reordered.
type Entry struct {
	// ID is the unique entry identifier.
	ID string `json:"id"`

	// Sequence is the global operation sequence number (0-based).
	Sequence uint64 `json:"sequence"`

	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the short label of the mutating operation.
	Operation string `json:"operation"`

	// OperationHash is the digest of the operation label and serialized payload.
	OperationHash string `json:"operation_hash"`

	// ChainHash is the causal hash: digest of OperationHash and the previous
	// entry's ChainHash (empty for the first entry). Any change to an entry
	// perturbs every subsequent ChainHash, which is what makes the ledger
	// tamper-evident across shard boundaries.
	ChainHash string `json:"chain_hash"`

	// Payload is the serialized operation payload (opaque to the ledger).
	Payload json.RawMessage `json:"payload"`
}

// newEntry builds an entry for the given operation and payload.
//
// The payload is serialized once; a serialization failure is returned to the
// caller and nothing is retained (all-or-nothing append semantics).
func newEntry(seq uint64, operation string, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing payload for %q: %w", operation, err)
	}
	return &Entry{
		ID:            uuid.NewString(),
		Sequence:      seq,
		Timestamp:     time.Now().UTC(),
		Operation:     operation,
		OperationHash: hashOperation(operation, raw),
		Payload:       raw,
	}, nil
}

// hashOperation computes the digest of operation ‖ serialized payload.
func hashOperation(operation string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// chainHash links an entry's content hash to its predecessor's chain hash.
func chainHash(operationHash, prevChainHash string) string {
	h := sha256.New()
	h.Write([]byte(operationHash))
	h.Write([]byte(prevChainHash))
	return hex.EncodeToString(h.Sum(nil))
}
