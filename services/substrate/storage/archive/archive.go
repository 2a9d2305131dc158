// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive persists sealed lineage shards and checkpoints in
// BadgerDB.
//
// The archive is write-once: a sealed shard or a checkpoint is stored under
// a stable key and never rewritten. On restart the substrate reloads the
// shard sequence, re-verifies every shard hash, and rebuilds the ledger
// prefix before accepting new appends.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/lineage"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/badger"
)

const (
	shardPrefix      = "shard:"
	checkpointPrefix = "checkpoint:"
)

// Archive is the durable store for sealed shards and checkpoints.
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Archive struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// Open opens an archive with the given storage configuration.
func Open(cfg badger.Config, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening archive store: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// shardKey formats a zero-padded key so Badger's lexicographic iteration
// returns shards in id order.
func shardKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", shardPrefix, id))
}

// PutShard persists a sealed shard. Rejects open shards: only immutable
// state belongs in the archive.
func (a *Archive) PutShard(s *lineage.Shard) error {
	if !s.Finalized() {
		return fmt.Errorf("shard %d is not finalized", s.ShardID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding shard %d: %w", s.ShardID, err)
	}
	err = a.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set(shardKey(s.ShardID), data)
	})
	if err != nil {
		return fmt.Errorf("persisting shard %d: %w", s.ShardID, err)
	}
	a.logger.Debug("shard archived", "shard_id", s.ShardID, "entries", len(s.Entries))
	return nil
}

// LoadShards returns all persisted shards in shard-id order.
func (a *Archive) LoadShards() ([]*lineage.Shard, error) {
	var shards []*lineage.Shard
	err := a.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(shardPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s lineage.Shard
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("decoding shard: %w", err)
				}
				shards = append(shards, &s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading shards: %w", err)
	}
	return shards, nil
}

// PutCheckpoint persists a checkpoint under its id.
func (a *Archive) PutCheckpoint(cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", cp.ID, err)
	}
	err = a.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set([]byte(checkpointPrefix+cp.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persisting checkpoint %s: %w", cp.ID, err)
	}
	a.logger.Debug("checkpoint archived", "checkpoint_id", cp.ID)
	return nil
}

// LoadCheckpoints returns all persisted checkpoints (unordered; callers
// sort by timestamp as needed).
func (a *Archive) LoadCheckpoints() ([]*checkpoint.Checkpoint, error) {
	var cps []*checkpoint.Checkpoint
	err := a.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var cp checkpoint.Checkpoint
				if err := json.Unmarshal(val, &cp); err != nil {
					return fmt.Errorf("decoding checkpoint: %w", err)
				}
				cps = append(cps, &cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading checkpoints: %w", err)
	}
	return cps, nil
}
