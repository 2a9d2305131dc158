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
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// MinApprovalKeyBytes is the minimum accepted approval key length.
const MinApprovalKeyBytes = 32

// ErrWeakApprovalKey indicates the configured key is too short to serve as
// an HMAC credential key.
var ErrWeakApprovalKey = errors.New("approval key must be at least 32 bytes")

// Approval verifies out-of-band quarantine clearance credentials.
//
// # Description
//
// A clearance token is HMAC-SHA256(key, fault_trace_id): the operator signs
// the exact incident they reviewed, so a token minted for one fault can
// never clear a different one. The key lives in a memguard enclave and is
// only materialized in locked memory for the duration of a single
// computation.
//
// # Thread Safety
//
// Safe for concurrent use; the enclave is immutable after construction.
type Approval struct {
	key *memguard.Enclave
}

// NewApproval seals the given key into an enclave. The caller's copy of the
// key is wiped.
func NewApproval(key []byte) (*Approval, error) {
	if len(key) < MinApprovalKeyBytes {
		memguard.WipeBytes(key)
		return nil, ErrWeakApprovalKey
	}
	return &Approval{key: memguard.NewEnclave(key)}, nil
}

// LoadApprovalKey reads an approval key from a file. Trailing whitespace is
// tolerated so keys can be provisioned with ordinary tooling.
func LoadApprovalKey(path string) (*Approval, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading approval key: %w", err)
	}
	trimmed := []byte(strings.TrimRight(string(raw), "\r\n"))
	memguard.WipeBytes(raw)
	return NewApproval(trimmed)
}

// Sign computes the clearance token for a fault trace id. Used by operator
// tooling, never by the service's own recovery paths.
func (a *Approval) Sign(faultTraceID string) ([]byte, error) {
	buf, err := a.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening approval key enclave: %w", err)
	}
	defer buf.Destroy()

	mac := hmac.New(sha256.New, buf.Bytes())
	mac.Write([]byte(faultTraceID))
	return mac.Sum(nil), nil
}

// Verify checks a clearance token against the fault trace id in constant
// time. Any enclave failure verifies as false; clearance must fail closed.
func (a *Approval) Verify(faultTraceID string, token []byte) bool {
	expected, err := a.Sign(faultTraceID)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, token)
}
