// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLineage is a Lineage stub with a fixed ancestry set.
type fakeLineage struct {
	current   string
	ancestors map[string]bool
	appended  []string
	appendErr error
}

func (f *fakeLineage) ComputeGlobalHash() string { return f.current }

func (f *fakeLineage) VerifyAncestry(hash string) bool { return f.ancestors[hash] }

func (f *fakeLineage) Append(operation string, payload any) error {
	f.appended = append(f.appended, operation)
	return f.appendErr
}

// fakeRestorer restores to a configurable energy value.
type fakeRestorer struct {
	energy   float64
	offset   float64
	err      error
	restored bool
}

func (f *fakeRestorer) Restore(nodes map[string]json.RawMessage, edges []json.RawMessage, energy float64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.restored = true
	f.energy = energy + f.offset
	return f.energy, nil
}

func testCheckpoint(lineageHash string, energy float64) *Checkpoint {
	return &Checkpoint{
		ID:          "cp-test",
		Timestamp:   time.Now().UTC(),
		LineageHash: lineageHash,
		EnergyTotal: energy,
		NodeStates:  map[string]json.RawMessage{"n1": json.RawMessage(`{"belief":0.5}`)},
		EdgeStates:  []json.RawMessage{json.RawMessage(`{"weight":1.0}`)},
	}
}

func TestRollbackToMatchingHash(t *testing.T) {
	lin := &fakeLineage{current: "abc123"}
	res := &fakeRestorer{}
	engine := NewEngine(lin, res, nil)

	result := engine.RollbackTo(testCheckpoint("abc123", 50.0), "abc123")

	assert.True(t, result.Success)
	assert.True(t, result.LineageHashVerified)
	assert.Equal(t, 50.0, result.EnergyRestored)
	assert.True(t, res.restored)

	// The rollback itself is part of the permanent record.
	require.Equal(t, []string{"rollback"}, lin.appended)
}

func TestRollbackToMismatchedHash(t *testing.T) {
	lin := &fakeLineage{current: "xyz789", ancestors: map[string]bool{}}
	res := &fakeRestorer{}
	engine := NewEngine(lin, res, nil)

	result := engine.RollbackTo(testCheckpoint("abc123", 50.0), "xyz789")

	assert.False(t, result.Success)
	assert.False(t, result.LineageHashVerified)
	assert.ErrorIs(t, result.Err, ErrLineageMismatch)
	assert.False(t, res.restored, "state must not be touched on verification failure")
	assert.Empty(t, lin.appended)
}

func TestRollbackToAncestorHash(t *testing.T) {
	lin := &fakeLineage{
		current:   "head",
		ancestors: map[string]bool{"older": true},
	}
	engine := NewEngine(lin, &fakeRestorer{}, nil)

	result := engine.RollbackTo(testCheckpoint("older", 12.5), "head")
	assert.True(t, result.Success)
	assert.True(t, result.LineageHashVerified)
}

func TestRollbackEnergyPostCondition(t *testing.T) {
	lin := &fakeLineage{current: "h"}
	engine := NewEngine(lin, &fakeRestorer{offset: 1e-6}, nil)

	result := engine.RollbackTo(testCheckpoint("h", 50.0), "h")
	assert.False(t, result.Success)
	assert.True(t, result.LineageHashVerified)
	assert.ErrorIs(t, result.Err, ErrEnergyDivergence)
}

func TestRollbackRestoreFailure(t *testing.T) {
	lin := &fakeLineage{current: "h"}
	engine := NewEngine(lin, &fakeRestorer{err: errors.New("store offline")}, nil)

	result := engine.RollbackTo(testCheckpoint("h", 1.0), "h")
	assert.False(t, result.Success)
	assert.True(t, result.LineageHashVerified)
	require.Error(t, result.Err)
}

func TestStoreCreateIsPure(t *testing.T) {
	s := NewStore()
	nodes := map[string]json.RawMessage{"n1": json.RawMessage(`{"v":1}`)}
	edges := []json.RawMessage{json.RawMessage(`{"w":2}`)}

	cp := s.Create(42.0, nodes, edges, "hash-a")

	// Mutating the caller's maps must not reach into the checkpoint.
	nodes["n1"] = json.RawMessage(`{"v":999}`)
	edges[0] = json.RawMessage(`{"w":999}`)
	assert.JSONEq(t, `{"v":1}`, string(cp.NodeStates["n1"]))
	assert.JSONEq(t, `{"w":2}`, string(cp.EdgeStates[0]))
}

func TestStoreSupersession(t *testing.T) {
	s := NewStore()
	first := s.Create(1.0, nil, nil, "h1")
	second := s.Create(2.0, nil, nil, "h2")

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	// Superseded checkpoints are retained, never destroyed.
	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.EnergyTotal)
	assert.Equal(t, 2, s.Len())

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
