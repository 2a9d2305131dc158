// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quarantine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestApprovalSignVerify(t *testing.T) {
	a, err := NewApproval(bytes.Repeat([]byte("a"), 32))
	if err != nil {
		t.Fatal(err)
	}

	token, err := a.Sign("trace-1")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Verify("trace-1", token) {
		t.Fatal("valid token rejected")
	}
	if a.Verify("trace-2", token) {
		t.Fatal("token must be bound to the signed trace id")
	}
	token[0] ^= 0xff
	if a.Verify("trace-1", token) {
		t.Fatal("corrupted token accepted")
	}
}

func TestApprovalKeysAreIndependent(t *testing.T) {
	a, _ := NewApproval(bytes.Repeat([]byte("a"), 32))
	b, _ := NewApproval(bytes.Repeat([]byte("b"), 32))

	token, err := a.Sign("trace-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Verify("trace-1", token) {
		t.Fatal("token from a different key accepted")
	}
}

func TestApprovalRejectsWeakKey(t *testing.T) {
	if _, err := NewApproval([]byte("short")); err != ErrWeakApprovalKey {
		t.Fatalf("expected ErrWeakApprovalKey, got %v", err)
	}
}

func TestLoadApprovalKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approval.key")
	if err := os.WriteFile(path, append(bytes.Repeat([]byte("k"), 32), '\n'), 0600); err != nil {
		t.Fatal(err)
	}

	a, err := LoadApprovalKey(path)
	if err != nil {
		t.Fatal(err)
	}
	token, err := a.Sign("t")
	if err != nil {
		t.Fatal(err)
	}

	// Same key material without the trailing newline signs identically.
	ref, _ := NewApproval(bytes.Repeat([]byte("k"), 32))
	want, _ := ref.Sign("t")
	if !bytes.Equal(token, want) {
		t.Fatal("trailing newline changed the key material")
	}
}

func TestLoadApprovalKeyMissingFile(t *testing.T) {
	if _, err := LoadApprovalKey(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
