// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/replay"
)

var scenarioSeed uint64

// scenarioCmd prints a deterministic replay scenario.
//
// # Description
//
// Expands a seed into the fixed-length operation sequence used for
// cross-environment determinism episodes. Every environment replaying
// the same seed must execute exactly this sequence; diffing two
// environments' scenario output is the first step when a replay episode
// diverges.
//
// # Examples
//
//	substrate scenario --seed 42
//	substrate scenario --seed 42 | sha256sum
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Print the deterministic operation sequence for a seed",
	RunE:  runScenarioCommand,
}

func init() {
	scenarioCmd.Flags().Uint64VarP(&scenarioSeed, "seed", "s", 0,
		"Scenario seed")
}

func runScenarioCommand(cmd *cobra.Command, args []string) error {
	ops := replay.GenerateScenario(scenarioSeed)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ops); err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	return nil
}
