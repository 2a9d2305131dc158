// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package replay

import "fmt"

// ScenarioOp is one deterministic operation in a generated scenario.
type ScenarioOp struct {
	// Cycle is the 0-based cycle index.
	Cycle int `json:"cycle"`

	// Operation is the operation label.
	Operation string `json:"operation"`

	// Target is the deterministic target identifier.
	Target string `json:"target"`

	// Value is the deterministic operation argument.
	Value uint64 `json:"value"`
}

// operationKinds are the five mutating operations a scenario exercises.
var operationKinds = [...]string{
	"update_belief",
	"adjust_edge_weight",
	"propagate",
	"inject_energy",
	"observe_esv",
}

// GenerateScenario deterministically expands a seed into a fixed-length
// operation sequence using a linear congruential generator. Identical seeds
// must yield identical sequences on every platform; the generator uses only
// unsigned 64-bit arithmetic, so there is nothing for a floating-point mode
// or iteration order to perturb.
func GenerateScenario(seed uint64) []ScenarioOp {
	ops := make([]ScenarioOp, 0, CycleCount)
	state := seed
	for cycle := 0; cycle < CycleCount; cycle++ {
		state = state*1103515245 + 12345
		kind := operationKinds[state%uint64(len(operationKinds))]
		state = state*1103515245 + 12345
		target := fmt.Sprintf("node_%d", state%64)
		state = state*1103515245 + 12345
		ops = append(ops, ScenarioOp{
			Cycle:     cycle,
			Operation: kind,
			Target:    target,
			Value:     state % 10000,
		})
	}
	return ops
}
