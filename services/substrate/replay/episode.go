// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package replay validates cross-environment determinism of ledger replays.
//
// An episode is a fixed-length deterministic operation sequence executed
// independently on at least three environments. The episode passes only if
// every environment produced a byte-identical ledger hash. This catches
// platform-dependent non-determinism (floating-point modes, iteration-order
// leaks) before it reaches production replay claims.
package replay

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CycleCount is the fixed episode length in operation cycles.
const CycleCount = 250

// MinEnvironments is the minimum environment records required before an
// episode can be validated.
const MinEnvironments = 3

var (
	// ErrInsufficientEnvironments: fewer than MinEnvironments records.
	ErrInsufficientEnvironments = errors.New("episode requires at least 3 environment records")

	// ErrHashDivergence: at least one environment produced a different hash.
	ErrHashDivergence = errors.New("replay hash divergence across environments")
)

// EnvironmentRecord describes one independent execution of the episode.
type EnvironmentRecord struct {
	// Name identifies the environment (host, CI lane).
	Name string `json:"name"`

	// Config captures the environment configuration label.
	Config string `json:"config"`

	// OS is the operating system the replay ran on.
	OS string `json:"os"`

	// HashRef is the ledger global hash the replay produced.
	HashRef string `json:"hash_ref"`

	// RecordedAt is when the record was added.
	RecordedAt time.Time `json:"recorded_at"`
}

// Episode is a cross-environment determinism proof in progress.
type Episode struct {
	// EpisodeID is the unique episode identifier.
	EpisodeID string `json:"episode_id"`

	// Seed is the deterministic scenario seed.
	Seed uint64 `json:"seed"`

	// Scenario is the scenario label.
	Scenario string `json:"scenario"`

	// CycleCount is the fixed episode length (always CycleCount).
	CycleCount int `json:"cycle_count"`

	// Environments are the recorded executions.
	Environments []EnvironmentRecord `json:"environment_records"`

	// Variance is 0.0 on agreement, 1.0 on any divergence. Hash
	// inequality has no meaningful distance metric, so it stays binary.
	Variance float64 `json:"variance"`

	// Passed is true once validation succeeded.
	Passed bool `json:"passed"`
}

// NewEpisode creates an episode for the given seed and scenario label.
func NewEpisode(seed uint64, scenario string) *Episode {
	return &Episode{
		EpisodeID:  uuid.NewString(),
		Seed:       seed,
		Scenario:   scenario,
		CycleCount: CycleCount,
	}
}

// AddEnvironment records one independent execution.
func (e *Episode) AddEnvironment(name, config, osName, hashRef string) {
	e.Environments = append(e.Environments, EnvironmentRecord{
		Name:       name,
		Config:     config,
		OS:         osName,
		HashRef:    hashRef,
		RecordedAt: time.Now().UTC(),
	})
}

// Validate checks the determinism proof.
//
// Requires at least MinEnvironments records. The first record's hash is the
// reference; any divergence is a hard failure: Variance is set to 1.0, the
// episode is marked failed, and ErrHashDivergence is returned naming the
// diverging environment.
func (e *Episode) Validate() error {
	if len(e.Environments) < MinEnvironments {
		e.Passed = false
		return fmt.Errorf("%w: have %d", ErrInsufficientEnvironments, len(e.Environments))
	}

	reference := e.Environments[0].HashRef
	for _, env := range e.Environments[1:] {
		if env.HashRef != reference {
			e.Variance = 1.0
			e.Passed = false
			return fmt.Errorf("%w: environment %q produced %s, reference %s",
				ErrHashDivergence, env.Name, env.HashRef, reference)
		}
	}

	e.Variance = 0.0
	e.Passed = true
	return nil
}
