// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package governance tracks conserved-quantity drift and reports system
// health.
//
// The validator measures; it never enforces. Quarantine decisions belong to
// the operations layer that consumes HealthStatus.
package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultEpsilon is the drift tolerance for conserved quantities.
const DefaultEpsilon = 1e-10

// Version identifies the governance contract revision.
const Version = "1.0.0"

// HealthStatus is the governance health summary.
type HealthStatus struct {
	// DriftWithinBounds is true when |CurrentDrift| <= epsilon.
	DriftWithinBounds bool `json:"drift_within_bounds"`

	// CurrentDrift is the last observed drift value.
	CurrentDrift float64 `json:"current_drift"`

	// EsvEnabled reports whether ethical-state-vector checking is on.
	EsvEnabled bool `json:"esv_enabled"`

	// LastAudit is when drift was last observed.
	LastAudit time.Time `json:"last_audit"`

	// Version is the governance contract revision.
	Version string `json:"version"`
}

// Validator tracks the last observed drift and audit timestamp.
//
// Stateless beyond those two values. Safe for concurrent use.
type Validator struct {
	mu           sync.RWMutex
	currentDrift float64
	lastAudit    time.Time
	esvEnabled   bool
}

// NewValidator creates a validator with ESV checking enabled.
func NewValidator() *Validator {
	return &Validator{esvEnabled: true, lastAudit: time.Now().UTC()}
}

// SetDrift records a drift observation and stamps the audit time.
func (v *Validator) SetDrift(drift float64) {
	v.mu.Lock()
	v.currentDrift = drift
	v.lastAudit = time.Now().UTC()
	v.mu.Unlock()
}

// CurrentDrift returns the last observed drift.
func (v *Validator) CurrentDrift() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentDrift
}

// DriftWithinBounds reports whether |drift| <= epsilon.
func (v *Validator) DriftWithinBounds(epsilon float64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return math.Abs(v.currentDrift) <= epsilon
}

// SetEsvEnabled toggles ethical-state-vector checking.
func (v *Validator) SetEsvEnabled(enabled bool) {
	v.mu.Lock()
	v.esvEnabled = enabled
	v.mu.Unlock()
}

// HealthStatus returns the governance summary for the given tolerance.
func (v *Validator) HealthStatus(epsilon float64) HealthStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return HealthStatus{
		DriftWithinBounds: math.Abs(v.currentDrift) <= epsilon,
		CurrentDrift:      v.currentDrift,
		EsvEnabled:        v.esvEnabled,
		LastAudit:         v.lastAudit,
		Version:           Version,
	}
}

// PolicyChecksum returns the uppercase hex SHA-256 of a governance policy
// document, for attestation that the deployed policy matches the reviewed
// one.
func PolicyChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading policy document: %w", err)
	}
	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}
