// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewMetrics(t *testing.T) {
	meter := otel.Meter("substrate-test")

	m, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.AppendsTotal == nil || m.RollbacksTotal == nil || m.DriftObserved == nil {
		t.Fatal("instruments not created")
	}

	// Recording must not panic even with the no-op global meter.
	m.AppendsTotal.Add(context.Background(), 1)
	m.DriftObserved.Record(context.Background(), 1e-12)
}

func TestRegisterQuarantineGauge(t *testing.T) {
	meter := otel.Meter("substrate-test")
	if err := RegisterQuarantineGauge(meter, func() bool { return true }); err != nil {
		t.Fatalf("RegisterQuarantineGauge: %v", err)
	}
}

func TestInitStdoutMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "stdout"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "carrier-pigeon"
	if _, err := Init(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}
