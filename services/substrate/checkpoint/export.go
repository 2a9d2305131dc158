// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ErrIntegrity indicates an exported checkpoint failed re-verification on
// import: the file was modified (or corrupted) after export.
var ErrIntegrity = errors.New("checkpoint integrity hash mismatch")

// exportEnvelope is the on-disk artifact format. The integrity hash covers
// every checkpoint field including the lineage hash, so corrupting any of
// them is detected on import.
type exportEnvelope struct {
	Checkpoint    *Checkpoint `json:"checkpoint"`
	IntegrityHash string      `json:"integrity_hash"`
}

// integrityHash digests the checkpoint's own fields in a canonical order.
//
// Node states are folded in sorted-key order so the digest is independent of
// map iteration order.
func integrityHash(cp *Checkpoint) string {
	h := sha256.New()
	h.Write([]byte(cp.ID))
	h.Write([]byte(cp.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z")))
	h.Write([]byte(cp.LineageHash))
	h.Write([]byte(strconv.FormatFloat(cp.EnergyTotal, 'g', -1, 64)))

	keys := make([]string, 0, len(cp.NodeStates))
	for k := range cp.NodeStates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write(cp.NodeStates[k])
	}
	for _, e := range cp.EdgeStates {
		h.Write(e)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExportJSON renders the checkpoint as a self-verifying JSON artifact.
func ExportJSON(cp *Checkpoint) ([]byte, error) {
	return json.MarshalIndent(exportEnvelope{
		Checkpoint:    cp,
		IntegrityHash: integrityHash(cp),
	}, "", "  ")
}

// ImportJSON parses an exported checkpoint and re-verifies its integrity
// hash against a freshly recomputed one. Silently corrupted files are
// rejected with ErrIntegrity.
func ImportJSON(data []byte) (*Checkpoint, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing checkpoint artifact: %w", err)
	}
	if env.Checkpoint == nil {
		return nil, fmt.Errorf("checkpoint artifact missing checkpoint body")
	}
	if integrityHash(env.Checkpoint) != env.IntegrityHash {
		return nil, ErrIntegrity
	}
	return env.Checkpoint, nil
}

// ExportFile writes the checkpoint artifact to path.
func ExportFile(cp *Checkpoint, path string) error {
	data, err := ExportJSON(cp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing checkpoint artifact: %w", err)
	}
	return nil
}

// ImportFile reads and verifies a checkpoint artifact from path.
func ImportFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint artifact: %w", err)
	}
	return ImportJSON(data)
}
