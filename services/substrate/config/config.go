// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the substrate service configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the substrate service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Substrate SubstrateConfig `yaml:"substrate"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the operator HTTP surface.
type ServerConfig struct {
	// Port for the API server.
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// MetricsPort for the Prometheus /metrics endpoint.
	MetricsPort int `yaml:"metrics_port" validate:"gte=0,lte=65535"`

	// Debug enables verbose request logging.
	Debug bool `yaml:"debug"`
}

// SubstrateConfig configures the reliability core.
type SubstrateConfig struct {
	// RotationInterval is the shard size in operations.
	RotationInterval int `yaml:"rotation_interval" validate:"gte=1"`

	// DriftEpsilon is the conserved-quantity tolerance.
	DriftEpsilon float64 `yaml:"drift_epsilon" validate:"gt=0"`

	// ArchivePath enables the BadgerDB shard/checkpoint archive when set.
	ArchivePath string `yaml:"archive_path"`

	// ApprovalKeyPath points at the quarantine clearance key file.
	// Without it, quarantine can only be cleared by restart.
	ApprovalKeyPath string `yaml:"approval_key_path"`

	// PolicyPath points at the governance policy document; its checksum is
	// reported in health output when set.
	PolicyPath string `yaml:"policy_path"`
}

// TelemetryConfig mirrors telemetry.Config for YAML loading.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	Environment    string `yaml:"environment"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8086,
			MetricsPort: 9096,
		},
		Substrate: SubstrateConfig{
			RotationInterval: 250,
			DriftEpsilon:     1e-10,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			Environment:    "development",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file, fills unset fields with defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints with validator tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
