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

import "encoding/json"

// Metadata summarizes ledger/shard state for operator tooling.
//
// This is the derived-summary surface intended for audit exports; it carries
// hashes and counts only, never raw entry payloads.
type Metadata struct {
	// TotalShards counts finalized shards plus the open shard.
	TotalShards uint64 `json:"total_shards"`

	// FinalizedShards counts sealed, hash-verified shards.
	FinalizedShards uint64 `json:"finalized_shards"`

	// CurrentShardOperations is the entry count of the open shard.
	CurrentShardOperations int `json:"current_shard_operations"`

	// TotalOperations is the global operation counter.
	TotalOperations uint64 `json:"total_operations"`

	// GlobalHash is the freshly recomputed global hash.
	GlobalHash string `json:"global_hash"`
}

// Metadata returns the current shard metadata summary.
func (l *Ledger) Metadata() Metadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Metadata{
		TotalShards:            uint64(len(l.finalized)) + 1,
		FinalizedShards:        uint64(len(l.finalized)),
		CurrentShardOperations: len(l.open.Entries),
		TotalOperations:        l.opCounter,
		GlobalHash:             globalHash(l.finalized, l.open.Entries),
	}
}

// ExportMetadataJSON renders the metadata summary as JSON.
func (l *Ledger) ExportMetadataJSON() ([]byte, error) {
	return json.MarshalIndent(l.Metadata(), "", "  ")
}
