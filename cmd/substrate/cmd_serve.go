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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSubstrate/pkg/logging"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/config"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/governance"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/quarantine"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/archive"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/storage/badger"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveConfigPath string // Path to the YAML config file
	servePort       int    // API port override
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// serveCmd starts the substrate API server.
//
// # Description
//
// Loads configuration, wires logging, telemetry, the optional BadgerDB
// archive and the quarantine approval credential, assembles the substrate
// core, and serves the operator API plus the Prometheus metrics endpoint
// until interrupted.
//
// # Examples
//
//	substrate serve
//	substrate serve --config /etc/aleutian/substrate.yaml
//	substrate serve --port 9090
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the substrate API server",
	Long: `Starts the substrate API server.

Serves the operator API under /v1/substrate and, when the Prometheus
exporter is active, a /metrics endpoint on the metrics port. With an
archive path configured, sealed lineage shards and checkpoints are
persisted to BadgerDB and recovered on restart.`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "",
		"Path to YAML config file (defaults apply when omitted)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"API port (overrides config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "substrate",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "substrate",
		ServiceVersion: substrate.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slogger.Warn("telemetry shutdown", "error", err.Error())
		}
	}()

	meter := otel.Meter("substrate")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("creating instruments: %w", err)
	}

	opts := substrate.Options{
		RotationInterval: cfg.Substrate.RotationInterval,
		DriftEpsilon:     cfg.Substrate.DriftEpsilon,
		Metrics:          metrics,
		Logger:           slogger,
	}

	if cfg.Substrate.ArchivePath != "" {
		store, err := archive.Open(badger.DefaultConfig(cfg.Substrate.ArchivePath), slogger)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
		opts.Archive = store
	}

	if cfg.Substrate.ApprovalKeyPath != "" {
		approval, err := quarantine.LoadApprovalKey(cfg.Substrate.ApprovalKeyPath)
		if err != nil {
			return fmt.Errorf("loading approval key: %w", err)
		}
		opts.Approval = approval
	} else {
		slogger.Warn("no approval key configured; quarantine can only be cleared by restart")
	}

	core, err := substrate.New(opts)
	if err != nil {
		return fmt.Errorf("assembling substrate core: %w", err)
	}
	if err := telemetry.RegisterQuarantineGauge(meter, core.IsQuarantined); err != nil {
		slogger.Warn("registering quarantine gauge", "error", err.Error())
	}

	if cfg.Substrate.PolicyPath != "" {
		checksum, err := governance.PolicyChecksum(cfg.Substrate.PolicyPath)
		if err != nil {
			return fmt.Errorf("checksumming governance policy: %w", err)
		}
		slogger.Info("governance policy attested",
			"path", cfg.Substrate.PolicyPath,
			"sha256", checksum,
		)
	}

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("substrate-service"))
	substrate.RegisterRoutes(router.Group("/v1"), substrate.NewHandlers(core, slogger))

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Hot-reload only adjusts logging verbosity; structural changes (ports,
	// archive path) need a restart.
	if serveConfigPath != "" {
		watcher, err := config.NewWatcher(serveConfigPath, func(next *config.Config) {
			logger.SetLevel(logging.ParseLevel(next.Logging.Level))
			slogger.Info("log level applied from config update", "log_level", next.Logging.Level)
		}, slogger)
		if err != nil {
			slogger.Warn("config watcher unavailable", "error", err.Error())
		} else {
			go func() {
				if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slogger.Warn("config watcher stopped", "error", err.Error())
				}
			}()
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slogger.Info("substrate API listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if handler := telemetry.MetricsHandler(); handler != nil && cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slogger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		slogger.Info("shutting down substrate")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slogger.Warn("api shutdown", "error", err.Error())
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slogger.Warn("metrics shutdown", "error", err.Error())
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slogger.Error("substrate exited with error", "error", err.Error())
		os.Exit(1)
	}
	return nil
}
