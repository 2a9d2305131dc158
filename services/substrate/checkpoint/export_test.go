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
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	s := NewStore()
	cp := s.Create(50.0,
		map[string]json.RawMessage{
			"n1": json.RawMessage(`{"belief":0.25}`),
			"n2": json.RawMessage(`{"belief":0.75}`),
		},
		[]json.RawMessage{json.RawMessage(`{"weight":1}`)},
		"abc123",
	)

	data, err := ExportJSON(cp)
	require.NoError(t, err)

	got, err := ImportJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, got.ID)
	assert.Equal(t, cp.LineageHash, got.LineageHash)
	assert.Equal(t, cp.EnergyTotal, got.EnergyTotal)
	assert.Equal(t, integrityHash(cp), integrityHash(got))
}

func TestImportRejectsCorruptedLineageHash(t *testing.T) {
	cp := NewStore().Create(50.0, nil, nil, "abc123")
	data, err := ExportJSON(cp)
	require.NoError(t, err)

	corrupted := strings.Replace(string(data), "abc123", "abc124", 1)
	require.NotEqual(t, string(data), corrupted)

	_, err = ImportJSON([]byte(corrupted))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestImportRejectsCorruptedEnergy(t *testing.T) {
	cp := NewStore().Create(50.0, nil, nil, "abc123")
	data, err := ExportJSON(cp)
	require.NoError(t, err)

	corrupted := strings.Replace(string(data), `"energy_total": 50`, `"energy_total": 51`, 1)
	require.NotEqual(t, string(data), corrupted)

	_, err = ImportJSON([]byte(corrupted))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := ImportJSON([]byte("not json"))
	assert.Error(t, err)

	_, err = ImportJSON([]byte(`{"integrity_hash":"x"}`))
	assert.Error(t, err)
}

func TestExportImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cp.json")

	cp := NewStore().Create(7.0, map[string]json.RawMessage{"n": json.RawMessage(`1`)}, nil, "h")
	require.NoError(t, ExportFile(cp, path))

	got, err := ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, got.ID)
}
