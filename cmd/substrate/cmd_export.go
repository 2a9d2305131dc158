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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/lineage"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/archive"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/badger"
)

var (
	exportArchivePath string
	exportOutDir      string
)

// exportCmd exports lineage metadata and checkpoints from a durable archive.
//
// # Description
//
// Opens the Badger archive of a stopped service and writes its contents out
// as verifiable artifacts: one checkpoint export envelope per checkpoint and
// a lineage metadata document covering the finalized shards. The metadata's
// global hash reflects finalized shards only, since the open shard is never
// persisted. Artifacts can be checked later with `substrate verify`.
//
// Run this against a live service's archive directory and Badger will refuse
// the second open; stop the service first.
//
// # Examples
//
//	substrate export --archive /var/lib/substrate/archive --out ./backup
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived lineage metadata and checkpoints",
	RunE:  runExportCommand,
}

func init() {
	exportCmd.Flags().StringVarP(&exportArchivePath, "archive", "a", "", "path to the substrate archive directory (required)")
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", ".", "directory for exported artifacts")
	_ = exportCmd.MarkFlagRequired("archive")
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	store, err := archive.Open(badger.DefaultConfig(exportArchivePath), nil)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(exportOutDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	shards, err := store.LoadShards()
	if err != nil {
		return fmt.Errorf("load shards: %w", err)
	}
	ledger := lineage.NewLedger(lineage.Config{})
	if err := ledger.LoadShards(shards); err != nil {
		return fmt.Errorf("rebuild ledger: %w", err)
	}
	metadata, err := ledger.ExportMetadataJSON()
	if err != nil {
		return fmt.Errorf("export lineage metadata: %w", err)
	}
	metadataPath := filepath.Join(exportOutDir, "lineage_metadata.json")
	if err := os.WriteFile(metadataPath, metadata, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", metadataPath, err)
	}
	fmt.Printf("wrote %s (%d finalized shards, global hash %s)\n",
		metadataPath, len(shards), ledger.ComputeGlobalHash())

	checkpoints, err := store.LoadCheckpoints()
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	for _, cp := range checkpoints {
		path := filepath.Join(exportOutDir, fmt.Sprintf("checkpoint_%s.json", cp.ID))
		if err := checkpoint.ExportFile(cp, path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("wrote %s\n", path)
	}
	fmt.Printf("exported %d checkpoints\n", len(checkpoints))
	return nil
}
