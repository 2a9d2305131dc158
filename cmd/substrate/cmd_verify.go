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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
)

// verifyCmd verifies an exported checkpoint artifact offline.
//
// # Description
//
// Re-verifies the integrity hash of a checkpoint export envelope without
// a running server. A clean exit means the artifact has not been
// tampered with since export; it does not prove the checkpoint belongs
// to any particular ledger; that ancestry check needs the live ledger.
//
// # Examples
//
//	substrate verify checkpoint.json
//	substrate verify backups/*.json
var verifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "Verify exported checkpoint artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVerifyCommand,
}

func runVerifyCommand(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		cp, err := checkpoint.ImportFile(path)
		if err != nil {
			failed++
			if errors.Is(err, checkpoint.ErrIntegrity) {
				fmt.Fprintf(os.Stderr, "FAIL %s: integrity hash mismatch\n", path)
			} else {
				fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			}
			continue
		}
		fmt.Printf("OK   %s: checkpoint %s energy=%v lineage=%s\n",
			path, cp.ID, cp.EnergyTotal, cp.LineageHash)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d artifacts failed verification", failed, len(args))
	}
	return nil
}
