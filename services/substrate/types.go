// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package substrate

import (
	"encoding/json"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/governance"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/lineage"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/quarantine"
)

// HealthReport is the combined operator health summary.
type HealthReport struct {
	// Governance is the drift/audit summary.
	Governance governance.HealthStatus `json:"governance"`

	// Quarantine is the latch state.
	Quarantine quarantine.State `json:"quarantine"`

	// Lineage is the shard metadata summary.
	Lineage lineage.Metadata `json:"lineage"`

	// CorrectionSuccessRate is the fraction of successful correction cycles.
	CorrectionSuccessRate float64 `json:"correction_success_rate"`

	// Checkpoints is the number of retained checkpoints.
	Checkpoints int `json:"checkpoints"`
}

// AppendRequest records one mutating operation.
type AppendRequest struct {
	// Operation is the operation label.
	Operation string `json:"operation" binding:"required"`

	// Payload is the opaque operation payload.
	Payload json.RawMessage `json:"payload"`
}

// CheckpointRequest captures a snapshot of external state.
type CheckpointRequest struct {
	// EnergyTotal is the conserved system energy.
	EnergyTotal float64 `json:"energy_total"`

	// NodeStates maps node id to opaque state snapshot.
	NodeStates map[string]json.RawMessage `json:"node_states"`

	// EdgeStates is the ordered sequence of opaque edge snapshots.
	EdgeStates []json.RawMessage `json:"edge_states"`
}

// RollbackRequest restores state from a checkpoint.
type RollbackRequest struct {
	// CheckpointID names the checkpoint to restore.
	CheckpointID string `json:"checkpoint_id" binding:"required"`
}

// DriftRequest reports a governance drift observation.
type DriftRequest struct {
	// Drift is the observed deviation of system energy.
	Drift float64 `json:"drift"`
}

// CorrectionRequest logs a drift-correction cycle.
type CorrectionRequest struct {
	PreDelta            float64 `json:"pre_delta"`
	AttemptedCorrection float64 `json:"attempted_correction"`
	PostDelta           float64 `json:"post_delta"`
}

// ClearQuarantineRequest carries the hex-encoded approval token.
type ClearQuarantineRequest struct {
	// Token is the hex-encoded HMAC clearance credential.
	Token string `json:"token" binding:"required"`
}

// EpisodeRequest opens a replay episode.
type EpisodeRequest struct {
	Seed     uint64 `json:"seed"`
	Scenario string `json:"scenario" binding:"required"`
}

// EnvironmentRequest records one replay execution environment.
type EnvironmentRequest struct {
	EpisodeID string `json:"episode_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Config    string `json:"config"`
	OS        string `json:"os"`
	HashRef   string `json:"hash_ref" binding:"required"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`

	// Code is the stable numeric error code, when one applies.
	Code int `json:"code,omitempty"`
}
