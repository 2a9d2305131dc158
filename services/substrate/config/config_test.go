// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "substrate.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
substrate:
  rotation_interval: 100
  drift_epsilon: 1e-9
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port override lost: %d", cfg.Server.Port)
	}
	if cfg.Substrate.RotationInterval != 100 {
		t.Fatalf("rotation interval override lost: %d", cfg.Substrate.RotationInterval)
	}
	if cfg.Substrate.DriftEpsilon != 1e-9 {
		t.Fatalf("epsilon override lost: %v", cfg.Substrate.DriftEpsilon)
	}
	// Unset fields keep defaults.
	if cfg.Server.MetricsPort != 9096 {
		t.Fatalf("default metrics port lost: %d", cfg.Server.MetricsPort)
	}
	if cfg.Telemetry.MetricExporter != "prometheus" {
		t.Fatalf("default metric exporter lost: %s", cfg.Telemetry.MetricExporter)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero rotation interval": "substrate:\n  rotation_interval: 0\n  drift_epsilon: 1e-10\n",
		"negative epsilon":       "substrate:\n  rotation_interval: 250\n  drift_epsilon: -1e-10\n",
		"port out of range":      "server:\n  port: 99999\n",
		"unknown log level":      "logging:\n  level: loud\n",
		"unknown exporter":       "telemetry:\n  metric_exporter: statsd\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
