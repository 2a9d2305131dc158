// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quarantine implements the system-wide fault-containment latch.
//
// Once tripped, the latch blocks every write-class operation until an
// explicitly authorized clearance is presented. Read-class and audit
// operations stay available while quarantined, specifically so operators
// can diagnose the fault.
//
// # Locking
//
// The active flag is an atomic, read lock-free on every mutation's hot
// path. The detailed state record (reason, trace id, timestamp) has its own
// mutex, written only inside EnterQuarantine and AttemptClear.
package quarantine

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Reason identifies the fault class that tripped the latch.
type Reason string

const (
	ReasonRollbackFailure      Reason = "ROLLBACK_FAILURE"
	ReasonEsvViolation         Reason = "ESV_VIOLATION"
	ReasonEnergyDriftExceeded  Reason = "ENERGY_DRIFT_EXCEEDED"
	ReasonLineageCorruption    Reason = "LINEAGE_CORRUPTION"
	ReasonReplayVariance       Reason = "REPLAY_VARIANCE"
	ReasonTopologicalViolation Reason = "TOPOLOGICAL_VIOLATION"
	ReasonUnauthorizedMutation Reason = "UNAUTHORIZED_MUTATION"
)

// Stable numeric error codes for the surrounding protocol layer.
const (
	CodeEsvViolation       = 1000
	CodeDriftExceeded      = 2000
	CodeReplayVariance     = 3000
	CodeCircuitInstability = 4000
	CodeSystemQuarantined  = 5000
)

// ErrSystemQuarantined is the distinguished operational-lockout error.
// Callers special-case it to surface "system quarantined" instead of a
// generic failure.
var ErrSystemQuarantined = errors.New("system quarantined: mutations rejected until cleared")

// State is the detailed quarantine record.
type State struct {
	// Active mirrors the latch flag at the time the record was read.
	Active bool `json:"active"`

	// Reason is the most recent trigger.
	Reason Reason `json:"reason,omitempty"`

	// Detail carries trigger-specific context (drift values, hashes).
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the latch last tripped.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// FaultTraceID is the id generated for the triggering incident.
	FaultTraceID string `json:"fault_trace_id,omitempty"`

	// LastValidCheckpoint references the newest known-good checkpoint, if any.
	LastValidCheckpoint string `json:"last_valid_checkpoint,omitempty"`
}

// Incident is one append-only log record of a latch trip or clearance.
type Incident struct {
	Timestamp    time.Time `json:"timestamp"`
	Event        string    `json:"event"`
	Reason       Reason    `json:"reason,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	FaultTraceID string    `json:"fault_trace_id"`
}

// Controller is the quarantine state machine: Inactive -> Active (with
// reason) -> Inactive (cleared). Activation is idempotent; re-entering while
// active overwrites reason and trace but the latch stays set. Clearing
// requires a valid approval credential and is the only path out.
type Controller struct {
	active   atomic.Bool
	approval *Approval
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	incidents []Incident
}

// NewController creates an inactive controller.
//
// approval may be nil, in which case AttemptClear always fails: a controller
// without a credential configured can only be cleared by process restart.
func NewController(approval *Approval, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{approval: approval, logger: logger}
}

// IsQuarantined is the lock-free hot-path check run before every mutation.
func (c *Controller) IsQuarantined() bool {
	return c.active.Load()
}

// EnterQuarantine trips the latch.
//
// The incident (reason, detail, fresh fault-trace id) is logged to the
// append-only incident list before the flag flips, so no observer can see
// "active" without a corresponding logged reason. Re-entering while active
// records the new trigger; the latch does not stack.
func (c *Controller) EnterQuarantine(reason Reason, detail, lastValidCheckpoint string) string {
	traceID := uuid.NewString()
	now := time.Now().UTC()

	c.mu.Lock()
	c.incidents = append(c.incidents, Incident{
		Timestamp:    now,
		Event:        "enter",
		Reason:       reason,
		Detail:       detail,
		FaultTraceID: traceID,
	})
	c.state = State{
		Active:              true,
		Reason:              reason,
		Detail:              detail,
		Timestamp:           now,
		FaultTraceID:        traceID,
		LastValidCheckpoint: lastValidCheckpoint,
	}
	c.logger.Error("quarantine entered",
		"reason", string(reason),
		"detail", detail,
		"fault_trace_id", traceID,
		"last_valid_checkpoint", lastValidCheckpoint,
	)
	// Log first, then flip: ordering guarantee.
	c.active.Store(true)
	c.mu.Unlock()

	return traceID
}

// AttemptClear resets the latch given a valid out-of-band approval token.
//
// The token must be a valid credential over the current fault trace id
// (see Approval). Returns true and resets to the default inactive state on
// success; false otherwise. There is no automatic recovery path.
func (c *Controller) AttemptClear(token []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active.Load() {
		return false
	}
	if c.approval == nil || !c.approval.Verify(c.state.FaultTraceID, token) {
		c.logger.Warn("quarantine clearance rejected",
			"fault_trace_id", c.state.FaultTraceID,
		)
		return false
	}

	c.incidents = append(c.incidents, Incident{
		Timestamp:    time.Now().UTC(),
		Event:        "clear",
		FaultTraceID: c.state.FaultTraceID,
	})
	c.logger.Info("quarantine cleared", "fault_trace_id", c.state.FaultTraceID)
	c.state = State{}
	c.active.Store(false)
	return true
}

// State returns a copy of the detailed quarantine record.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Active = c.active.Load()
	return s
}

// Incidents returns a copy of the append-only incident log.
func (c *Controller) Incidents() []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Incident, len(c.incidents))
	copy(out, c.incidents)
	return out
}
