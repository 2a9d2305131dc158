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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, l *Ledger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Append("update_node", map[string]any{"node": fmt.Sprintf("n%d", i), "value": i})
		require.NoError(t, err)
	}
}

func TestGlobalHashDeterminism(t *testing.T) {
	a := NewLedger(Config{})
	b := NewLedger(Config{})
	appendN(t, a, 300)
	appendN(t, b, 300)

	// Entry IDs and timestamps differ between the two ledgers; the global
	// hash depends only on operation labels and payloads, so identical
	// append sequences must agree.
	assert.Equal(t, a.ComputeGlobalHash(), b.ComputeGlobalHash())

	// Repeated computation on the same ledger is stable.
	assert.Equal(t, a.ComputeGlobalHash(), a.ComputeGlobalHash())
}

func TestShardRotationBoundary(t *testing.T) {
	l := NewLedger(Config{})

	appendN(t, l, 250)
	finalized := l.FinalizedShards()
	require.Len(t, finalized, 1)
	assert.Len(t, finalized[0].Entries, 250)
	assert.True(t, finalized[0].Finalized())
	assert.True(t, finalized[0].Verify())
	assert.Equal(t, 0, l.OpenShardSize())

	_, err := l.Append("update_node", map[string]any{"node": "n250"})
	require.NoError(t, err)
	assert.Equal(t, 1, l.OpenShardSize())

	meta := l.Metadata()
	assert.Equal(t, uint64(2), meta.TotalShards)
	assert.Equal(t, uint64(1), meta.FinalizedShards)
	assert.Equal(t, uint64(251), meta.TotalOperations)

	// The new open shard starts at operation 250.
	all := l.All()
	assert.Equal(t, uint64(250), all[250].Sequence)
}

func TestTamperEvidence(t *testing.T) {
	honest := NewLedger(Config{})
	tampered := NewLedger(Config{})

	for i := 0; i < 600; i++ {
		payload := map[string]any{"i": i}
		tamperedPayload := payload
		if i == 100 {
			tamperedPayload = map[string]any{"i": -1}
		}
		_, err := honest.Append("op", payload)
		require.NoError(t, err)
		_, err = tampered.Append("op", tamperedPayload)
		require.NoError(t, err)
	}

	hs := honest.FinalizedShards()
	ts := tampered.FinalizedShards()
	require.Len(t, ts, 2)

	// The divergence is in shard 0. Chain hashes propagate it forward, so
	// every shard from that point on differs, as does the global hash.
	assert.NotEqual(t, hs[0].ShardHash, ts[0].ShardHash)
	assert.NotEqual(t, hs[1].ShardHash, ts[1].ShardHash)
	assert.NotEqual(t, honest.ComputeGlobalHash(), tampered.ComputeGlobalHash())

	// The tampered entry's own content hash differs, and so does the chain
	// hash of every later entry.
	assert.NotEqual(t, hs[0].Entries[100].OperationHash, ts[0].Entries[100].OperationHash)
	assert.Equal(t, hs[0].Entries[99].ChainHash, ts[0].Entries[99].ChainHash)
	assert.NotEqual(t, hs[0].Entries[101].ChainHash, ts[0].Entries[101].ChainHash)
}

func TestVerifyAncestry(t *testing.T) {
	l := NewLedger(Config{})

	emptyHash := l.ComputeGlobalHash()
	var historical []string
	for i := 0; i < 520; i++ {
		_, err := l.Append("op", map[string]any{"i": i})
		require.NoError(t, err)
		historical = append(historical, l.ComputeGlobalHash())
	}

	t.Run("accepts every historical hash", func(t *testing.T) {
		assert.True(t, l.VerifyAncestry(emptyHash))
		for _, h := range historical {
			require.True(t, l.VerifyAncestry(h))
		}
	})

	t.Run("rejects never-observed full-open-shard states", func(t *testing.T) {
		// Rotation seals a shard atomically with its final append, so the
		// state "all 250 entries present but shard still open" never
		// surfaced as a global hash.
		var sealedHashes []string
		for _, s := range l.FinalizedShards() {
			var full []string
			for _, e := range s.Entries {
				full = append(full, e.ChainHash)
			}
			assert.False(t, l.VerifyAncestry(globalHashOf(sealedHashes, full)),
				"shard %d full-but-open state accepted", s.ShardID)
			sealedHashes = append(sealedHashes, s.ShardHash)
		}
	})

	t.Run("rejects forged hashes", func(t *testing.T) {
		assert.False(t, l.VerifyAncestry("deadbeef"))
		assert.False(t, l.VerifyAncestry(""))

		other := NewLedger(Config{})
		_, err := other.Append("op", map[string]any{"i": -7})
		require.NoError(t, err)
		assert.False(t, l.VerifyAncestry(other.ComputeGlobalHash()))
	})
}

func TestAppendSerializationFailure(t *testing.T) {
	l := NewLedger(Config{})

	// Channels are not JSON-serializable; nothing may be appended.
	_, err := l.Append("bad", make(chan int))
	require.Error(t, err)
	assert.Equal(t, uint64(0), l.TotalOperations())
	assert.Equal(t, 0, l.OpenShardSize())
}

func TestOnFinalizeCallback(t *testing.T) {
	var sealed []uint64
	l := NewLedger(Config{
		RotationInterval: 10,
		OnFinalize:       func(s *Shard) { sealed = append(sealed, s.ShardID) },
	})
	appendN(t, l, 35)
	assert.Equal(t, []uint64{0, 1, 2}, sealed)
}

func TestLoadShards(t *testing.T) {
	src := NewLedger(Config{RotationInterval: 5})
	appendN(t, src, 12)

	dst := NewLedger(Config{RotationInterval: 5})
	require.NoError(t, dst.LoadShards(src.FinalizedShards()))
	assert.Equal(t, uint64(10), dst.TotalOperations())
	assert.Equal(t, uint64(2), dst.Metadata().FinalizedShards)

	t.Run("rejects empty finalized shard", func(t *testing.T) {
		// An empty shard hashes consistently (digest over nothing) but can
		// never have been sealed by a ledger; loading one must fail instead
		// of faulting on the missing chain tail.
		sealedAt := time.Now().UTC()
		empty := &Shard{
			ShardID:     0,
			Entries:     []*Entry{},
			ShardHash:   hashEntryChain(nil),
			FinalizedAt: &sealedAt,
		}
		err := NewLedger(Config{RotationInterval: 5}).LoadShards([]*Shard{empty})
		require.Error(t, err)
	})

	t.Run("rejects corrupted shard", func(t *testing.T) {
		shards := src.FinalizedShards()
		shards[0].Entries[3].ChainHash = "0000"
		err := NewLedger(Config{RotationInterval: 5}).LoadShards(shards)
		require.Error(t, err)
	})
}

func TestConcurrentAppend(t *testing.T) {
	l := NewLedger(Config{})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := l.Append("op", map[string]any{"worker": w, "i": i})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(800), l.TotalOperations())
	require.Len(t, l.FinalizedShards(), 3)
	for _, s := range l.FinalizedShards() {
		assert.Len(t, s.Entries, 250)
		assert.True(t, s.Verify())
	}

	// Append order is a total order: sequences are dense and increasing.
	for i, e := range l.All() {
		require.Equal(t, uint64(i), e.Sequence)
	}
}
