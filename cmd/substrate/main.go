// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command substrate runs the Aleutian reliability substrate: the
// hash-chained lineage ledger, checkpoint/rollback, the quarantine latch,
// governance drift auditing, correction logging, and the replay
// determinism protocol, behind an operator HTTP API.
//
// Usage:
//
//	substrate serve                     # defaults: API :8086, metrics :9096
//	substrate serve --config substrate.yaml
//	substrate verify checkpoint.json    # offline artifact verification
//	substrate export --archive /var/lib/substrate/archive --out ./backup
//	substrate approve <fault-trace-id> --key-file approval.key
//	substrate scenario --seed 42        # print a deterministic replay scenario
//
// Example requests:
//
//	# Health summary
//	curl http://localhost:8086/v1/substrate/health
//
//	# Record an operation
//	curl -X POST http://localhost:8086/v1/substrate/lineage/append \
//	  -H "Content-Type: application/json" \
//	  -d '{"operation": "update_belief", "payload": {"node": "n1"}}'
//
//	# Capture a checkpoint
//	curl -X POST http://localhost:8086/v1/substrate/checkpoint \
//	  -H "Content-Type: application/json" \
//	  -d '{"energy_total": 100.0}'
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "substrate",
	Short: "Aleutian reliability substrate",
	Long: `The Aleutian reliability substrate provides the trust-and-recovery
layer under the reasoning engine: tamper-evident operation lineage,
verified checkpoint/rollback, fault quarantine, governance drift
auditing, and cross-environment replay determinism validation.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(scenarioCmd)
}
