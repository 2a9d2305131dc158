// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package substrate assembles the trust-and-recovery core behind the
// Aleutian reasoning engine: the hash-chained lineage ledger, checkpoint
// and rollback, the quarantine latch, governance drift tracking, correction
// auditing, and the replay determinism protocol.
//
// The package exposes one runtime-context object, Core. Nothing here is a
// process-wide singleton: independent Cores (one per test, one per engine
// instance) share no state.
package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/correction"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/governance"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/lineage"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/quarantine"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/replay"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/archive"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/telemetry"
)

// Options configures a Core.
type Options struct {
	// RotationInterval is the shard size. Default: 250.
	RotationInterval int

	// DriftEpsilon is the conserved-quantity tolerance. Default: 1e-10.
	DriftEpsilon float64

	// Restorer is the external owner of node/edge state and energy.
	// Required for rollback to do anything; nil leaves rollback inert.
	Restorer checkpoint.StateRestorer

	// Approval verifies quarantine clearance tokens. Nil means quarantine
	// can only be cleared by restart.
	Approval *quarantine.Approval

	// Archive persists sealed shards and checkpoints. Optional.
	Archive *archive.Archive

	// Metrics are the substrate instruments. Optional.
	Metrics *telemetry.Metrics

	// Logger for substrate operations. Default: slog.Default().
	Logger *slog.Logger
}

// Core is the substrate runtime context.
//
// # Thread Safety
//
// Safe for concurrent use. Each subsystem carries its own locking; the
// ledger serializes all lineage mutation, end to end.
type Core struct {
	ledger      *lineage.Ledger
	checkpoints *checkpoint.Store
	rollback    *checkpoint.Engine
	quarantine  *quarantine.Controller
	governance  *governance.Validator
	corrections *correction.Logger
	replays     *replay.Protocol
	archive     *archive.Archive
	metrics     *telemetry.Metrics
	epsilon     float64
	logger      *slog.Logger
}

// lineageRecorder adapts the ledger to the rollback engine's narrow view.
type lineageRecorder struct {
	ledger *lineage.Ledger
}

func (r lineageRecorder) ComputeGlobalHash() string       { return r.ledger.ComputeGlobalHash() }
func (r lineageRecorder) VerifyAncestry(hash string) bool { return r.ledger.VerifyAncestry(hash) }
func (r lineageRecorder) Append(op string, p any) error {
	_, err := r.ledger.Append(op, p)
	return err
}

// New assembles a Core. If an archive is configured, previously persisted
// shards are re-verified and loaded before the ledger accepts appends, and
// persisted checkpoints are restored into the store.
func New(opts Options) (*Core, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	epsilon := opts.DriftEpsilon
	if epsilon <= 0 {
		epsilon = governance.DefaultEpsilon
	}

	c := &Core{
		checkpoints: checkpoint.NewStore(),
		quarantine:  quarantine.NewController(opts.Approval, logger),
		governance:  governance.NewValidator(),
		corrections: correction.NewLogger(),
		replays:     replay.NewProtocol(),
		archive:     opts.Archive,
		metrics:     opts.Metrics,
		epsilon:     epsilon,
		logger:      logger,
	}

	var onFinalize func(*lineage.Shard)
	if opts.Archive != nil {
		onFinalize = func(s *lineage.Shard) {
			if err := opts.Archive.PutShard(s); err != nil {
				// The in-memory chain stays authoritative; a persistence
				// miss degrades restart recovery, not correctness.
				logger.Error("failed to archive sealed shard",
					"shard_id", s.ShardID,
					"error", err.Error(),
				)
			}
		}
	}
	c.ledger = lineage.NewLedger(lineage.Config{
		RotationInterval: opts.RotationInterval,
		OnFinalize:       onFinalize,
	})
	c.rollback = checkpoint.NewEngine(lineageRecorder{c.ledger}, opts.Restorer, logger)

	if opts.Archive != nil {
		shards, err := opts.Archive.LoadShards()
		if err != nil {
			return nil, fmt.Errorf("recovering shard archive: %w", err)
		}
		if len(shards) > 0 {
			if err := c.ledger.LoadShards(shards); err != nil {
				return nil, fmt.Errorf("rebuilding ledger from archive: %w", err)
			}
			logger.Info("ledger rebuilt from archive",
				"shards", len(shards),
				"operations", c.ledger.TotalOperations(),
			)
		}
		cps, err := opts.Archive.LoadCheckpoints()
		if err != nil {
			return nil, fmt.Errorf("recovering checkpoint archive: %w", err)
		}
		// The archive iterates in key order (checkpoint ids are random), so
		// restore capture order before seeding the store or Latest() would
		// report an arbitrary checkpoint.
		sort.SliceStable(cps, func(i, j int) bool { return cps[i].Timestamp.Before(cps[j].Timestamp) })
		for _, cp := range cps {
			c.checkpoints.Put(cp)
		}
	}

	return c, nil
}

// Append records a mutating operation in the lineage ledger.
//
// Rejected with quarantine.ErrSystemQuarantined while the latch is set; the
// hot-path check is lock-free.
func (c *Core) Append(ctx context.Context, operation string, payload any) (*lineage.Entry, error) {
	if c.quarantine.IsQuarantined() {
		return nil, quarantine.ErrSystemQuarantined
	}
	entry, err := c.ledger.Append(operation, payload)
	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.AppendsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
		if err == nil && entry.Sequence > 0 && c.ledger.OpenShardSize() == 0 {
			c.metrics.RotationsTotal.Add(ctx, 1)
		}
	}
	return entry, err
}

// GlobalHash recomputes the ledger global hash.
func (c *Core) GlobalHash(ctx context.Context) string {
	start := time.Now()
	hash := c.ledger.ComputeGlobalHash()
	if c.metrics != nil {
		c.metrics.GlobalHashDuration.Record(ctx, time.Since(start).Seconds())
	}
	return hash
}

// CreateCheckpoint captures a snapshot of external state.
//
// Read-only with respect to the rest of the system: it never appends to the
// ledger and never mutates energy, so it remains available while
// quarantined so that operators can take a forensic snapshot of the
// faulted state.
func (c *Core) CreateCheckpoint(ctx context.Context, energyTotal float64, nodeStates map[string]json.RawMessage, edgeStates []json.RawMessage) (*checkpoint.Checkpoint, error) {
	cp := c.checkpoints.Create(energyTotal, nodeStates, edgeStates, c.ledger.ComputeGlobalHash())
	if c.archive != nil {
		if err := c.archive.PutCheckpoint(cp); err != nil {
			c.logger.Error("failed to archive checkpoint", "checkpoint_id", cp.ID, "error", err.Error())
		}
	}
	if c.metrics != nil {
		c.metrics.CheckpointsTotal.Add(ctx, 1)
	}
	c.logger.Info("checkpoint captured",
		"checkpoint_id", cp.ID,
		"energy_total", energyTotal,
		"lineage_hash", cp.LineageHash,
	)
	return cp, nil
}

// Rollback restores external state from the named checkpoint.
//
// Verification failure escalates to quarantine (reason RollbackFailure), as
// does an energy post-condition violation (reason EnergyDriftExceeded).
// Rollback is a write-class operation: it is rejected while quarantined.
func (c *Core) Rollback(ctx context.Context, checkpointID string) (checkpoint.RollbackResult, error) {
	if c.quarantine.IsQuarantined() {
		return checkpoint.RollbackResult{}, quarantine.ErrSystemQuarantined
	}
	cp, err := c.checkpoints.Get(checkpointID)
	if err != nil {
		return checkpoint.RollbackResult{}, err
	}
	return c.rollbackTo(ctx, cp), nil
}

// rollbackTo runs the engine and routes failures to the quarantine latch.
func (c *Core) rollbackTo(ctx context.Context, cp *checkpoint.Checkpoint) checkpoint.RollbackResult {
	result := c.rollback.RollbackTo(cp, c.ledger.ComputeGlobalHash())

	if c.metrics != nil {
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		c.metrics.RollbacksTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}

	switch {
	case result.Success:
	case !result.LineageHashVerified:
		c.enterQuarantine(ctx, quarantine.ReasonRollbackFailure,
			fmt.Sprintf("lineage verification failed for checkpoint %s", cp.ID), "")
	default:
		c.enterQuarantine(ctx, quarantine.ReasonEnergyDriftExceeded,
			fmt.Sprintf("rollback to %s: %v", cp.ID, result.Err), cp.ID)
	}
	return result
}

// ReportDrift feeds a drift observation into governance and, when the bound
// is exceeded, attempts recovery: rollback to the latest checkpoint, and
// quarantine if no checkpoint exists or rollback fails.
func (c *Core) ReportDrift(ctx context.Context, drift float64) (checkpoint.RollbackResult, error) {
	if c.quarantine.IsQuarantined() {
		return checkpoint.RollbackResult{}, quarantine.ErrSystemQuarantined
	}
	c.governance.SetDrift(drift)
	if c.metrics != nil {
		c.metrics.DriftObserved.Record(ctx, drift)
	}
	if c.governance.DriftWithinBounds(c.epsilon) {
		return checkpoint.RollbackResult{}, nil
	}

	c.logger.Warn("governance drift exceeded tolerance",
		"drift", drift,
		"epsilon", c.epsilon,
	)
	cp, err := c.checkpoints.Latest()
	if err != nil {
		c.enterQuarantine(ctx, quarantine.ReasonEnergyDriftExceeded,
			fmt.Sprintf("drift %v exceeds %v with no checkpoint to restore", drift, c.epsilon), "")
		return checkpoint.RollbackResult{}, ErrNoCheckpoint
	}
	return c.rollbackTo(ctx, cp), nil
}

// Quarantine trips the fault-containment latch on behalf of outer layers
// (ESV violations, topology checks, unauthorized mutation detection).
func (c *Core) Quarantine(ctx context.Context, reason quarantine.Reason, detail string) string {
	return c.enterQuarantine(ctx, reason, detail, c.lastValidCheckpointID())
}

func (c *Core) enterQuarantine(ctx context.Context, reason quarantine.Reason, detail, lastValid string) string {
	traceID := c.quarantine.EnterQuarantine(reason, detail, lastValid)
	if c.metrics != nil {
		c.metrics.QuarantineEntriesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", string(reason)),
		))
	}
	return traceID
}

func (c *Core) lastValidCheckpointID() string {
	cp, err := c.checkpoints.Latest()
	if err != nil {
		return ""
	}
	return cp.ID
}

// IsQuarantined is the lock-free mutation-gate check.
func (c *Core) IsQuarantined() bool {
	return c.quarantine.IsQuarantined()
}

// QuarantineState returns the detailed latch record.
func (c *Core) QuarantineState() quarantine.State {
	return c.quarantine.State()
}

// QuarantineIncidents returns the append-only incident log.
func (c *Core) QuarantineIncidents() []quarantine.Incident {
	return c.quarantine.Incidents()
}

// ClearQuarantine attempts clearance with an out-of-band approval token.
func (c *Core) ClearQuarantine(token []byte) bool {
	return c.quarantine.AttemptClear(token)
}

// LogCorrection records a drift-correction cycle. Audit-class: available
// while quarantined.
func (c *Core) LogCorrection(ctx context.Context, preDelta, attemptedCorrection, postDelta float64) correction.Attempt {
	attempt := c.corrections.LogAttempt(preDelta, attemptedCorrection, postDelta)
	if c.metrics != nil {
		c.metrics.CorrectionAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(attempt.Status())),
		))
	}
	return attempt
}

// Health summarizes governance, quarantine, lineage, and correction state.
func (c *Core) Health() HealthReport {
	return HealthReport{
		Governance:            c.governance.HealthStatus(c.epsilon),
		Quarantine:            c.quarantine.State(),
		Lineage:               c.ledger.Metadata(),
		CorrectionSuccessRate: c.corrections.SuccessRate(),
		Checkpoints:           c.checkpoints.Len(),
	}
}

// Ledger exposes the lineage ledger for read-class consumers.
func (c *Core) Ledger() *lineage.Ledger { return c.ledger }

// Checkpoints exposes the checkpoint store.
func (c *Core) Checkpoints() *checkpoint.Store { return c.checkpoints }

// Corrections exposes the correction audit log.
func (c *Core) Corrections() *correction.Logger { return c.corrections }

// Governance exposes the governance validator.
func (c *Core) Governance() *governance.Validator { return c.governance }

// Replays exposes the replay protocol.
func (c *Core) Replays() *replay.Protocol { return c.replays }

// ValidateReplay runs the determinism proof for a replay episode. Hash
// divergence across environments is a containment event: the latch trips
// with a REPLAY_VARIANCE incident before the error is returned.
func (c *Core) ValidateReplay(ctx context.Context, episodeID string) (*replay.Episode, error) {
	ep, err := c.replays.Validate(episodeID)
	if err != nil && errors.Is(err, replay.ErrHashDivergence) {
		c.enterQuarantine(ctx, quarantine.ReasonReplayVariance,
			fmt.Sprintf("episode %s: %v", episodeID, err), c.lastValidCheckpointID())
	}
	return ep, err
}

// ExportCheckpoint renders the named checkpoint as a self-verifying JSON
// artifact.
func (c *Core) ExportCheckpoint(id string) ([]byte, error) {
	cp, err := c.checkpoints.Get(id)
	if err != nil {
		return nil, err
	}
	return checkpoint.ExportJSON(cp)
}

// ImportCheckpoint verifies and installs an exported checkpoint artifact.
func (c *Core) ImportCheckpoint(data []byte) (*checkpoint.Checkpoint, error) {
	cp, err := checkpoint.ImportJSON(data)
	if err != nil {
		return nil, err
	}
	c.checkpoints.Put(cp)
	if c.archive != nil {
		if err := c.archive.PutCheckpoint(cp); err != nil {
			c.logger.Error("failed to archive imported checkpoint", "checkpoint_id", cp.ID, "error", err.Error())
		}
	}
	return cp, nil
}
