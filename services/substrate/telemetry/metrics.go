// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the substrate service.
//
// All instruments use the "substrate_" prefix. Safe for concurrent use
// after creation.
type Metrics struct {
	// --- Lineage Metrics ---

	// AppendsTotal counts ledger appends by operation label and status.
	AppendsTotal metric.Int64Counter

	// RotationsTotal counts shard finalizations.
	RotationsTotal metric.Int64Counter

	// GlobalHashDuration records global-hash recomputation time in seconds.
	GlobalHashDuration metric.Float64Histogram

	// --- Checkpoint/Rollback Metrics ---

	// CheckpointsTotal counts checkpoint captures.
	CheckpointsTotal metric.Int64Counter

	// RollbacksTotal counts rollback attempts by outcome.
	RollbacksTotal metric.Int64Counter

	// --- Fault Containment Metrics ---

	// QuarantineEntriesTotal counts latch trips by reason.
	QuarantineEntriesTotal metric.Int64Counter

	// CorrectionAttemptsTotal counts correction cycles by status.
	CorrectionAttemptsTotal metric.Int64Counter

	// DriftObserved records the absolute drift observed at each audit.
	DriftObserved metric.Float64Histogram
}

// NewMetrics creates all substrate instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.AppendsTotal, err = meter.Int64Counter(
		"substrate_ledger_appends_total",
		metric.WithDescription("Total ledger append operations"),
	); err != nil {
		return nil, fmt.Errorf("create appends counter: %w", err)
	}

	if m.RotationsTotal, err = meter.Int64Counter(
		"substrate_shard_rotations_total",
		metric.WithDescription("Total shard finalizations"),
	); err != nil {
		return nil, fmt.Errorf("create rotations counter: %w", err)
	}

	if m.GlobalHashDuration, err = meter.Float64Histogram(
		"substrate_global_hash_duration_seconds",
		metric.WithDescription("Global hash recomputation duration"),
	); err != nil {
		return nil, fmt.Errorf("create hash histogram: %w", err)
	}

	if m.CheckpointsTotal, err = meter.Int64Counter(
		"substrate_checkpoints_total",
		metric.WithDescription("Total checkpoint captures"),
	); err != nil {
		return nil, fmt.Errorf("create checkpoints counter: %w", err)
	}

	if m.RollbacksTotal, err = meter.Int64Counter(
		"substrate_rollbacks_total",
		metric.WithDescription("Total rollback attempts by outcome"),
	); err != nil {
		return nil, fmt.Errorf("create rollbacks counter: %w", err)
	}

	if m.QuarantineEntriesTotal, err = meter.Int64Counter(
		"substrate_quarantine_entries_total",
		metric.WithDescription("Total quarantine latch trips by reason"),
	); err != nil {
		return nil, fmt.Errorf("create quarantine counter: %w", err)
	}

	if m.CorrectionAttemptsTotal, err = meter.Int64Counter(
		"substrate_correction_attempts_total",
		metric.WithDescription("Total drift correction attempts by status"),
	); err != nil {
		return nil, fmt.Errorf("create correction counter: %w", err)
	}

	if m.DriftObserved, err = meter.Float64Histogram(
		"substrate_drift_observed",
		metric.WithDescription("Absolute drift observed at audit time"),
	); err != nil {
		return nil, fmt.Errorf("create drift histogram: %w", err)
	}

	return m, nil
}

// RegisterQuarantineGauge registers an observable gauge reflecting the latch
// state (0=inactive, 1=active). The callback must be cheap; it runs on every
// metric collection.
func RegisterQuarantineGauge(meter metric.Meter, isQuarantined func() bool) error {
	gauge, err := meter.Int64ObservableGauge(
		"substrate_quarantine_active",
		metric.WithDescription("Quarantine latch state (0=inactive, 1=active)"),
	)
	if err != nil {
		return fmt.Errorf("create quarantine gauge: %w", err)
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var v int64
		if isQuarantined() {
			v = 1
		}
		o.ObserveInt64(gauge, v)
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("register quarantine gauge callback: %w", err)
	}
	return nil
}
