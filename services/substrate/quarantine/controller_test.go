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
	"sync"
	"testing"
)

func testApproval(t *testing.T) *Approval {
	t.Helper()
	key := bytes.Repeat([]byte("k"), 32)
	a, err := NewApproval(key)
	if err != nil {
		t.Fatalf("NewApproval: %v", err)
	}
	return a
}

func TestQuarantineLatch(t *testing.T) {
	a := testApproval(t)
	c := NewController(a, nil)

	if c.IsQuarantined() {
		t.Fatal("controller must start inactive")
	}

	trace1 := c.EnterQuarantine(ReasonEnergyDriftExceeded, "drift=1e-9 threshold=1e-10", "")
	if !c.IsQuarantined() {
		t.Fatal("latch did not trip")
	}

	// Re-entering stays latched and records the new trigger.
	trace2 := c.EnterQuarantine(ReasonLineageCorruption, "shard 3 hash mismatch", "cp-9")
	if !c.IsQuarantined() {
		t.Fatal("latch released by re-entry")
	}
	if trace1 == trace2 {
		t.Fatal("re-entry must generate a fresh fault trace id")
	}
	st := c.State()
	if st.Reason != ReasonLineageCorruption || st.FaultTraceID != trace2 {
		t.Fatalf("state does not reflect most recent trigger: %+v", st)
	}
	if st.LastValidCheckpoint != "cp-9" {
		t.Fatalf("last valid checkpoint dropped: %+v", st)
	}

	t.Run("invalid token rejected", func(t *testing.T) {
		if c.AttemptClear([]byte("MANUAL_AUDIT_APPROVED")) {
			t.Fatal("string token must not clear quarantine")
		}
		if !c.IsQuarantined() {
			t.Fatal("latch released by invalid token")
		}
	})

	t.Run("token for older incident rejected", func(t *testing.T) {
		stale, err := a.Sign(trace1)
		if err != nil {
			t.Fatal(err)
		}
		if c.AttemptClear(stale) {
			t.Fatal("token minted for a previous incident must not clear")
		}
	})

	t.Run("valid token clears", func(t *testing.T) {
		token, err := a.Sign(trace2)
		if err != nil {
			t.Fatal(err)
		}
		if !c.AttemptClear(token) {
			t.Fatal("valid token rejected")
		}
		if c.IsQuarantined() {
			t.Fatal("latch still set after clearance")
		}
		if st := c.State(); st.Reason != "" || st.FaultTraceID != "" {
			t.Fatalf("state not reset: %+v", st)
		}
	})
}

func TestIncidentLoggedBeforeFlagFlips(t *testing.T) {
	c := NewController(testApproval(t), nil)
	c.EnterQuarantine(ReasonEsvViolation, "esv invalid on n4", "")

	incidents := c.Incidents()
	if len(incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incidents))
	}
	if incidents[0].Event != "enter" || incidents[0].Reason != ReasonEsvViolation {
		t.Fatalf("unexpected incident: %+v", incidents[0])
	}
	if incidents[0].FaultTraceID != c.State().FaultTraceID {
		t.Fatal("incident trace id must match state trace id")
	}
}

func TestClearOnInactiveController(t *testing.T) {
	a := testApproval(t)
	c := NewController(a, nil)
	token, _ := a.Sign("")
	if c.AttemptClear(token) {
		t.Fatal("clearing an inactive controller must fail")
	}
}

func TestNilApprovalNeverClears(t *testing.T) {
	c := NewController(nil, nil)
	trace := c.EnterQuarantine(ReasonUnauthorizedMutation, "", "")
	if c.AttemptClear([]byte(trace)) {
		t.Fatal("controller without credential must never clear")
	}
}

func TestConcurrentLatchAccess(t *testing.T) {
	c := NewController(testApproval(t), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.EnterQuarantine(ReasonEnergyDriftExceeded, "", "")
				_ = c.IsQuarantined()
				_ = c.State()
			}
		}()
	}
	wg.Wait()

	if !c.IsQuarantined() {
		t.Fatal("latch must remain set")
	}
	if got := len(c.Incidents()); got != 16*50 {
		t.Fatalf("incident log lost records: %d", got)
	}
}
