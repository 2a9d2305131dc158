// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint implements point-in-time snapshots of external state
// and the rollback engine that restores them.
//
// A checkpoint captures the external state (node/edge snapshots, total
// energy) together with the ledger's global hash at the instant of capture.
// Checkpoints are immutable; later checkpoints supersede but never destroy
// earlier ones. Creation is read-only with respect to the rest of the
// system: it never appends to the ledger and never mutates energy.
package checkpoint

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Epsilon is the tolerance for conserved-quantity comparisons.
const Epsilon = 1e-10

// ErrNotFound is returned when a checkpoint id is unknown.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is an immutable snapshot of external state plus the ledger
// global hash at capture time.
//
// The node and edge snapshots are opaque to this package: the substrate
// records and restores them but never interprets them.
type Checkpoint struct {
	// ID is the unique checkpoint identifier.
	ID string `json:"id"`

	// Timestamp is when the checkpoint was captured.
	Timestamp time.Time `json:"timestamp"`

	// LineageHash is the ledger's global hash at capture time.
	LineageHash string `json:"lineage_hash"`

	// EnergyTotal is the conserved system energy at capture time.
	EnergyTotal float64 `json:"energy_total"`

	// NodeStates maps node id to its opaque state snapshot.
	NodeStates map[string]json.RawMessage `json:"node_states"`

	// EdgeStates is the ordered sequence of opaque edge snapshots.
	EdgeStates []json.RawMessage `json:"edge_states"`
}

// Store holds every checkpoint ever created. Superseded checkpoints are
// retained so rollback can always reach an older known-good state.
//
// Safe for concurrent use. Checkpoints are immutable after creation, so
// reads hand out the stored pointers directly.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
	order       []string
}

// NewStore creates an empty checkpoint store.
func NewStore() *Store {
	return &Store{checkpoints: make(map[string]*Checkpoint)}
}

// Create captures a checkpoint from the given external state.
//
// Pure construction: the inputs are copied, nothing else in the system is
// touched. The caller supplies the freshly computed ledger global hash.
func (s *Store) Create(energyTotal float64, nodeStates map[string]json.RawMessage, edgeStates []json.RawMessage, globalHash string) *Checkpoint {
	nodes := make(map[string]json.RawMessage, len(nodeStates))
	for id, st := range nodeStates {
		nodes[id] = append(json.RawMessage(nil), st...)
	}
	edges := make([]json.RawMessage, len(edgeStates))
	for i, st := range edgeStates {
		edges[i] = append(json.RawMessage(nil), st...)
	}

	cp := &Checkpoint{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		LineageHash: globalHash,
		EnergyTotal: energyTotal,
		NodeStates:  nodes,
		EdgeStates:  edges,
	}

	s.mu.Lock()
	s.checkpoints[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	s.mu.Unlock()
	return cp
}

// Put inserts an externally produced checkpoint (e.g. an imported artifact
// or one reloaded from the archive).
func (s *Store) Put(cp *Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checkpoints[cp.ID]; !exists {
		s.order = append(s.order, cp.ID)
	}
	s.checkpoints[cp.ID] = cp
}

// Get returns the checkpoint with the given id.
func (s *Store) Get(id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cp, nil
}

// Latest returns the most recently created checkpoint, or ErrNotFound when
// none exist.
func (s *Store) Latest() (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, ErrNotFound
	}
	return s.checkpoints[s.order[len(s.order)-1]], nil
}

// List returns all checkpoints ordered by capture time, oldest first.
func (s *Store) List() []*Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Checkpoint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.checkpoints[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Len returns the number of stored checkpoints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
