// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package correction records drift-correction cycles for audit.
//
// Every attempted correction is logged with its pre/post deltas and a
// convergence verdict. A failed single attempt is expected and never
// escalates; it is sustained governance drift, detected elsewhere, that
// triggers quarantine.
package correction

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Epsilon is the success threshold for residual drift.
const Epsilon = 1e-10

// Status classifies a correction attempt.
type Status string

const (
	// StatusSuccess: residual drift within Epsilon.
	StatusSuccess Status = "SUCCESS"

	// StatusPartial: drift shrank but stayed above Epsilon.
	StatusPartial Status = "PARTIAL"

	// StatusFailed: drift did not shrink.
	StatusFailed Status = "FAILED"
)

// Attempt is one immutable drift-correction audit record.
type Attempt struct {
	// AttemptID is the unique attempt identifier.
	AttemptID string `json:"attempt_id"`

	// Timestamp is when the attempt was logged.
	Timestamp time.Time `json:"timestamp"`

	// PreDelta is the drift before the correction.
	PreDelta float64 `json:"pre_delta"`

	// AttemptedCorrection is the applied adjustment.
	AttemptedCorrection float64 `json:"attempted_correction"`

	// PostDelta is the drift after the correction.
	PostDelta float64 `json:"post_delta"`

	// Converged is true iff |PostDelta| < |PreDelta|.
	Converged bool `json:"converged"`

	// CycleNumber is the monotonically increasing correction cycle.
	CycleNumber uint64 `json:"cycle_number"`
}

// NewAttempt builds an attempt record and computes its convergence verdict.
func NewAttempt(preDelta, attemptedCorrection, postDelta float64, cycle uint64) Attempt {
	return Attempt{
		AttemptID:           uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		PreDelta:            preDelta,
		AttemptedCorrection: attemptedCorrection,
		PostDelta:           postDelta,
		Converged:           math.Abs(postDelta) < math.Abs(preDelta),
		CycleNumber:         cycle,
	}
}

// Status derives the attempt classification.
func (a Attempt) Status() Status {
	switch {
	case math.Abs(a.PostDelta) <= Epsilon:
		return StatusSuccess
	case a.Converged:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Logger is the append-only audit list of correction attempts.
//
// One mutex guards the list and the cycle counter: LogAttempt assigns the
// next cycle and appends atomically with respect to other calls. Records are
// never removed.
type Logger struct {
	mu       sync.Mutex
	attempts []Attempt
	cycle    uint64
}

// NewLogger creates an empty correction logger.
func NewLogger() *Logger {
	return &Logger{}
}

// LogAttempt records a correction cycle and returns the immutable record.
func (l *Logger) LogAttempt(preDelta, attemptedCorrection, postDelta float64) Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycle++
	attempt := NewAttempt(preDelta, attemptedCorrection, postDelta, l.cycle)
	l.attempts = append(l.attempts, attempt)
	return attempt
}

// Attempts returns a copy of the audit list in log order.
func (l *Logger) Attempts() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Attempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}

// SuccessRate returns the fraction of attempts classified Success. An empty
// log reports 1.0: no attempts means nothing has failed yet. This is an
// operational health signal, not an enforcement gate.
func (l *Logger) SuccessRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.attempts) == 0 {
		return 1.0
	}
	var successes int
	for _, a := range l.attempts {
		if a.Status() == StatusSuccess {
			successes++
		}
	}
	return float64(successes) / float64(len(l.attempts))
}

// auditReport is the export envelope for operator tooling.
type auditReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total_attempts"`
	SuccessRate float64   `json:"success_rate"`
	Attempts    []Attempt `json:"attempts"`
}

// ExportJSON renders the full audit list with summary statistics.
func (l *Logger) ExportJSON() ([]byte, error) {
	attempts := l.Attempts()
	return json.MarshalIndent(auditReport{
		GeneratedAt: time.Now().UTC(),
		Total:       len(attempts),
		SuccessRate: l.SuccessRate(),
		Attempts:    attempts,
	}, "", "  ")
}
