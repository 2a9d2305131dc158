// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/lineage"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/badger"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(badger.InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func sealedShards(t *testing.T, count int) []*lineage.Shard {
	t.Helper()
	l := lineage.NewLedger(lineage.Config{RotationInterval: 5})
	for i := 0; i < count*5; i++ {
		_, err := l.Append("op", map[string]any{"i": i})
		require.NoError(t, err)
	}
	return l.FinalizedShards()
}

func TestShardRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	shards := sealedShards(t, 3)

	for _, s := range shards {
		require.NoError(t, a.PutShard(s))
	}

	loaded, err := a.LoadShards()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, s := range loaded {
		assert.Equal(t, shards[i].ShardID, s.ShardID)
		assert.Equal(t, shards[i].ShardHash, s.ShardHash)
		assert.True(t, s.Verify(), "shard %d failed verification after reload", s.ShardID)
	}

	// A reloaded archive can seed a fresh ledger.
	l := lineage.NewLedger(lineage.Config{RotationInterval: 5})
	require.NoError(t, l.LoadShards(loaded))
	assert.Equal(t, uint64(15), l.TotalOperations())
}

func TestPutShardRejectsOpenShard(t *testing.T) {
	a := openTestArchive(t)
	err := a.PutShard(&lineage.Shard{ShardID: 7})
	require.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	store := checkpoint.NewStore()
	cp := store.Create(50.0,
		map[string]json.RawMessage{"n1": json.RawMessage(`{"belief":0.5}`)},
		[]json.RawMessage{json.RawMessage(`{"weight":1}`)},
		"hash-a",
	)

	require.NoError(t, a.PutCheckpoint(cp))

	loaded, err := a.LoadCheckpoints()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, cp.ID, loaded[0].ID)
	assert.Equal(t, cp.LineageHash, loaded[0].LineageHash)
	assert.Equal(t, cp.EnergyTotal, loaded[0].EnergyTotal)
	assert.JSONEq(t, `{"belief":0.5}`, string(loaded[0].NodeStates["n1"]))
}

func TestEmptyArchive(t *testing.T) {
	a := openTestArchive(t)
	shards, err := a.LoadShards()
	require.NoError(t, err)
	assert.Empty(t, shards)

	cps, err := a.LoadCheckpoints()
	require.NoError(t, err)
	assert.Empty(t, cps)
}
