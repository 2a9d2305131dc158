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
	"fmt"
	"log/slog"
	"math"
)

var (
	// ErrLineageMismatch indicates the checkpoint's lineage hash is neither
	// the current global hash nor a verified ancestor of it. Callers must
	// escalate to quarantine; this condition is never retried here.
	ErrLineageMismatch = errors.New("checkpoint lineage hash is not an ancestor of current ledger state")

	// ErrEnergyDivergence indicates the restored energy diverged from the
	// checkpoint beyond tolerance. This is itself a fault.
	ErrEnergyDivergence = errors.New("restored energy diverged from checkpoint")

	// ErrNoRestorer indicates the engine has no external state owner wired.
	ErrNoRestorer = errors.New("no state restorer configured")
)

// Lineage is the slice of ledger behavior the rollback engine needs:
// a fresh global hash, genuine ancestry verification by shard-history walk,
// and the ability to append the rollback record itself.
type Lineage interface {
	ComputeGlobalHash() string
	VerifyAncestry(hash string) bool
	Append(operation string, payload any) error
}

// StateRestorer is the external owner of node/edge state and energy.
//
// Restore replaces the owner's state wholesale with the checkpoint's
// snapshots and returns the energy total it actually holds afterwards, so
// the engine can enforce the conservation post-condition.
type StateRestorer interface {
	Restore(nodeStates map[string]json.RawMessage, edgeStates []json.RawMessage, energyTotal float64) (float64, error)
}

// RollbackResult reports the outcome of a rollback attempt.
type RollbackResult struct {
	// Success is true only if verification, restoration, and the energy
	// post-condition all held.
	Success bool `json:"success"`

	// CheckpointID identifies the checkpoint used.
	CheckpointID string `json:"checkpoint_id"`

	// EnergyRestored is the energy total reported by the state owner.
	EnergyRestored float64 `json:"energy_restored"`

	// LineageHashVerified is false when ancestry verification failed.
	LineageHashVerified bool `json:"lineage_hash_verified"`

	// Err carries the failure reason, nil on success.
	Err error `json:"-"`
}

// Engine restores external state from checkpoints after verifying ledger
// ancestry.
type Engine struct {
	lineage  Lineage
	restorer StateRestorer
	logger   *slog.Logger
}

// NewEngine creates a rollback engine bound to a ledger and an external
// state owner.
func NewEngine(lineage Lineage, restorer StateRestorer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{lineage: lineage, restorer: restorer, logger: logger}
}

// RollbackTo restores state from the checkpoint.
//
// # Description
//
// Verifies that the checkpoint's lineage hash is either identical to
// currentGlobalHash or a genuine ancestor of it (the ledger walks its shard
// archive; string resemblance is never enough). On verification failure the
// result carries LineageHashVerified=false and the caller must escalate to
// quarantine. On success the external state is restored, the energy
// post-condition |restored - checkpoint.EnergyTotal| <= Epsilon is enforced,
// and a rollback entry naming the checkpoint id is appended to the ledger:
// the rollback itself becomes part of the permanent record.
//
// # Thread Safety
//
// Safe for concurrent use; all mutable state lives in the collaborators.
func (e *Engine) RollbackTo(cp *Checkpoint, currentGlobalHash string) RollbackResult {
	result := RollbackResult{CheckpointID: cp.ID}

	verified := cp.LineageHash == currentGlobalHash || e.lineage.VerifyAncestry(cp.LineageHash)
	if !verified {
		result.Err = ErrLineageMismatch
		e.logger.Error("rollback lineage verification failed",
			"checkpoint_id", cp.ID,
			"checkpoint_hash", cp.LineageHash,
			"current_hash", currentGlobalHash,
		)
		return result
	}
	result.LineageHashVerified = true

	if e.restorer == nil {
		result.Err = ErrNoRestorer
		return result
	}
	restored, err := e.restorer.Restore(cp.NodeStates, cp.EdgeStates, cp.EnergyTotal)
	if err != nil {
		result.Err = fmt.Errorf("restoring state: %w", err)
		return result
	}
	result.EnergyRestored = restored

	if math.Abs(restored-cp.EnergyTotal) > Epsilon {
		result.Err = fmt.Errorf("%w: restored=%v checkpoint=%v", ErrEnergyDivergence, restored, cp.EnergyTotal)
		return result
	}

	if err := e.lineage.Append("rollback", map[string]any{
		"checkpoint_id":   cp.ID,
		"lineage_hash":    cp.LineageHash,
		"energy_restored": restored,
	}); err != nil {
		result.Err = fmt.Errorf("recording rollback: %w", err)
		return result
	}

	result.Success = true
	e.logger.Info("rollback complete",
		"checkpoint_id", cp.ID,
		"energy_restored", restored,
	)
	return result
}
