// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package substrate

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/checkpoint"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/quarantine"
	"github.com/AleutianAI/AleutianSubstrate/services/substrate/replay"
)

// ServiceVersion is the substrate service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the substrate service.
type Handlers struct {
	core   *Core
	logger *slog.Logger
}

// NewHandlers creates handlers for the given core.
func NewHandlers(core *Core, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{core: core, logger: logger}
}

// getOrCreateRequestID extracts the X-Request-ID header or mints a new one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// HandleHealth handles GET /v1/substrate/health.
//
// Description:
//
//	Returns the combined operator health summary: governance drift
//	status, quarantine state, lineage shard metadata, correction
//	success rate, and retained checkpoint count. Always 200; the body
//	carries the degraded-state detail.
//
// Response:
//
//	200 OK: HealthReport
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.Health())
}

// HandleReady handles GET /v1/substrate/ready.
//
// Description:
//
//	Readiness is quarantine-aware: a quarantined substrate is alive
//	but must not receive mutating traffic.
//
// Response:
//
//	200 OK: ready
//	423 Locked: System is quarantined
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.core.IsQuarantined() {
		c.JSON(http.StatusLocked, gin.H{
			"ready": false,
			"code":  quarantine.CodeSystemQuarantined,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "version": ServiceVersion})
}

// HandleLineage handles GET /v1/substrate/lineage.
//
// Description:
//
//	Returns the lineage shard metadata summary including the current
//	global hash. Read-class; available during quarantine.
//
// Response:
//
//	200 OK: lineage.Metadata
func (h *Handlers) HandleLineage(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.Ledger().Metadata())
}

// HandleLineageEntries handles GET /v1/substrate/lineage/entries.
//
// Description:
//
//	Returns the most recent lineage entries. The optional limit query
//	parameter caps the count (default 50).
//
// Response:
//
//	200 OK: []lineage.Entry
//	400 Bad Request: Malformed limit
func (h *Handlers) HandleLineageEntries(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.core.Ledger().Recent(limit))
}

// HandleVerifyAncestry handles GET /v1/substrate/lineage/verify/:hash.
//
// Description:
//
//	Reports whether the given hash is the current global hash or any
//	verified historical one.
//
// Response:
//
//	200 OK: {"hash": ..., "ancestor": bool}
func (h *Handlers) HandleVerifyAncestry(c *gin.Context) {
	hash := c.Param("hash")
	c.JSON(http.StatusOK, gin.H{
		"hash":     hash,
		"ancestor": h.core.Ledger().VerifyAncestry(hash),
	})
}

// HandleAppend handles POST /v1/substrate/lineage/append.
//
// Description:
//
//	Records one mutating operation in the lineage ledger. Rejected
//	with 423 Locked while the system is quarantined.
//
// Request Body:
//
//	AppendRequest
//
// Response:
//
//	200 OK: the recorded lineage entry
//	400 Bad Request: Validation error
//	423 Locked: System is quarantined
func (h *Handlers) HandleAppend(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleAppend")

	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	entry, err := h.core.Append(c.Request.Context(), req.Operation, req.Payload)
	if err != nil {
		if errors.Is(err, quarantine.ErrSystemQuarantined) {
			c.JSON(http.StatusLocked, ErrorResponse{
				Error: err.Error(),
				Code:  quarantine.CodeSystemQuarantined,
			})
			return
		}
		logger.Error("Append failed", "operation", req.Operation, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// HandleCreateCheckpoint handles POST /v1/substrate/checkpoint.
//
// Description:
//
//	Captures a checkpoint binding the caller-supplied state snapshot
//	to the current lineage global hash. Permitted during quarantine:
//	snapshotting is read-class, and operators may want a forensic
//	capture of the faulted state.
//
// Request Body:
//
//	CheckpointRequest
//
// Response:
//
//	200 OK: the created checkpoint
//	400 Bad Request: Validation error
func (h *Handlers) HandleCreateCheckpoint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCreateCheckpoint")

	var req CheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	cp, err := h.core.CreateCheckpoint(c.Request.Context(), req.EnergyTotal, req.NodeStates, req.EdgeStates)
	if err != nil {
		logger.Error("Checkpoint creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, cp)
}

// HandleListCheckpoints handles GET /v1/substrate/checkpoints.
func (h *Handlers) HandleListCheckpoints(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.Checkpoints().List())
}

// HandleExportCheckpoint handles GET /v1/substrate/checkpoint/:id/export.
//
// Description:
//
//	Serializes a checkpoint to its integrity-protected JSON envelope
//	for offline archival.
//
// Response:
//
//	200 OK: export envelope
//	404 Not Found: Unknown checkpoint ID
func (h *Handlers) HandleExportCheckpoint(c *gin.Context) {
	id := c.Param("id")
	data, err := h.core.ExportCheckpoint(id)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "checkpoint not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HandleImportCheckpoint handles POST /v1/substrate/checkpoint/import.
//
// Description:
//
//	Verifies an exported checkpoint envelope and installs the
//	checkpoint into the store. Corrupted envelopes are rejected.
//
// Response:
//
//	200 OK: the imported checkpoint
//	400 Bad Request: Corrupted or malformed envelope
func (h *Handlers) HandleImportCheckpoint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleImportCheckpoint")

	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	cp, err := h.core.ImportCheckpoint(data)
	if err != nil {
		logger.Warn("Checkpoint import rejected", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	logger.Info("Checkpoint imported", "checkpoint_id", cp.ID)
	c.JSON(http.StatusOK, cp)
}

// HandleRollback handles POST /v1/substrate/rollback.
//
// Description:
//
//	Restores system state from the named checkpoint after verifying
//	lineage ancestry. A failed rollback quarantines the system, so a
//	423 here reflects a pre-existing latch while a 500 means the
//	request itself tripped it.
//
// Request Body:
//
//	RollbackRequest
//
// Response:
//
//	200 OK: checkpoint.RollbackResult
//	400 Bad Request: Validation error
//	404 Not Found: Unknown checkpoint ID
//	423 Locked: System is quarantined
//	500 Internal Server Error: Rollback failed (system now quarantined)
func (h *Handlers) HandleRollback(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRollback")

	var req RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.core.Rollback(c.Request.Context(), req.CheckpointID)
	if err != nil {
		switch {
		case errors.Is(err, quarantine.ErrSystemQuarantined):
			c.JSON(http.StatusLocked, ErrorResponse{
				Error: err.Error(),
				Code:  quarantine.CodeSystemQuarantined,
			})
		case errors.Is(err, checkpoint.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "checkpoint not found"})
		default:
			logger.Error("Rollback failed", "checkpoint_id", req.CheckpointID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	if !result.Success {
		logger.Error("Rollback failed", "checkpoint_id", req.CheckpointID, "error", result.Err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  result.Err.Error(),
			"result": result,
		})
		return
	}

	logger.Info("Rollback complete",
		"checkpoint_id", result.CheckpointID,
		"energy_restored", result.EnergyRestored)
	c.JSON(http.StatusOK, result)
}

// HandleReportDrift handles POST /v1/substrate/drift.
//
// Description:
//
//	Records a governance drift observation. Drift beyond epsilon
//	triggers automatic recovery: rollback to the latest checkpoint,
//	or quarantine when no checkpoint exists.
//
// Request Body:
//
//	DriftRequest
//
// Response:
//
//	200 OK: HealthReport after the observation and any recovery
//	400 Bad Request: Validation error
//	423 Locked: System is quarantined
//	503 Service Unavailable: No checkpoint to restore (system now quarantined)
func (h *Handlers) HandleReportDrift(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleReportDrift")

	var req DriftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if _, err := h.core.ReportDrift(c.Request.Context(), req.Drift); err != nil {
		switch {
		case errors.Is(err, quarantine.ErrSystemQuarantined):
			c.JSON(http.StatusLocked, ErrorResponse{
				Error: err.Error(),
				Code:  quarantine.CodeSystemQuarantined,
			})
		case errors.Is(err, ErrNoCheckpoint):
			logger.Error("Drift exceeded with no checkpoint", "drift", req.Drift)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: err.Error(),
				Code:  quarantine.CodeDriftExceeded,
			})
		default:
			logger.Error("Drift recovery failed", "drift", req.Drift, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, h.core.Health())
}

// HandleQuarantineState handles GET /v1/substrate/quarantine.
func (h *Handlers) HandleQuarantineState(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.QuarantineState())
}

// HandleQuarantineIncidents handles GET /v1/substrate/quarantine/incidents.
func (h *Handlers) HandleQuarantineIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.QuarantineIncidents())
}

// HandleClearQuarantine handles POST /v1/substrate/quarantine/clear.
//
// Description:
//
//	Attempts to release the quarantine latch with an approval token.
//	The token must be the hex-encoded HMAC over the fault trace id of
//	the incident that tripped the latch.
//
// Request Body:
//
//	ClearQuarantineRequest
//
// Response:
//
//	200 OK: quarantine.State after the clear
//	400 Bad Request: Validation error
//	403 Forbidden: Token rejected
func (h *Handlers) HandleClearQuarantine(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleClearQuarantine")

	var req ClearQuarantineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	token, err := hex.DecodeString(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "token must be hex encoded"})
		return
	}

	if !h.core.ClearQuarantine(token) {
		logger.Warn("Quarantine clear rejected")
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "approval token rejected"})
		return
	}

	logger.Info("Quarantine cleared")
	c.JSON(http.StatusOK, h.core.QuarantineState())
}

// HandleLogCorrection handles POST /v1/substrate/audit/corrections.
//
// Description:
//
//	Logs one drift-correction cycle and returns the classified
//	attempt record.
//
// Request Body:
//
//	CorrectionRequest
//
// Response:
//
//	200 OK: correction attempt with its status
//	400 Bad Request: Validation error
func (h *Handlers) HandleLogCorrection(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleLogCorrection")

	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	attempt := h.core.LogCorrection(c.Request.Context(), req.PreDelta, req.AttemptedCorrection, req.PostDelta)
	c.JSON(http.StatusOK, gin.H{
		"attempt": attempt,
		"status":  attempt.Status(),
	})
}

// HandleCorrectionAudit handles GET /v1/substrate/audit/corrections.
//
// Description:
//
//	Returns the full correction audit report as JSON.
//
// Response:
//
//	200 OK: audit report with attempts and success rate
func (h *Handlers) HandleCorrectionAudit(c *gin.Context) {
	data, err := h.core.Corrections().ExportJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HandleCreateEpisode handles POST /v1/substrate/replay/episodes.
//
// Description:
//
//	Opens a replay episode for cross-environment determinism
//	validation.
//
// Request Body:
//
//	EpisodeRequest
//
// Response:
//
//	200 OK: replay.Episode
//	400 Bad Request: Validation error
func (h *Handlers) HandleCreateEpisode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCreateEpisode")

	var req EpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	ep := h.core.Replays().CreateEpisode(req.Seed, req.Scenario)
	logger.Info("Replay episode created", "episode_id", ep.EpisodeID, "seed", req.Seed)
	c.JSON(http.StatusOK, ep)
}

// HandleAddEnvironment handles POST /v1/substrate/replay/environments.
//
// Description:
//
//	Records one execution environment's state hash for an episode.
//
// Request Body:
//
//	EnvironmentRequest
//
// Response:
//
//	200 OK: replay.Episode after the addition
//	400 Bad Request: Validation error
//	404 Not Found: Unknown episode
func (h *Handlers) HandleAddEnvironment(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleAddEnvironment")

	var req EnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.core.Replays().AddEnvironment(req.EpisodeID, req.Name, req.Config, req.OS, req.HashRef); err != nil {
		if errors.Is(err, replay.ErrEpisodeNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "episode not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	ep, err := h.core.Replays().Episode(req.EpisodeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ep)
}

// HandleValidateReplay handles POST /v1/substrate/replay/episodes/:id/validate.
//
// Description:
//
//	Compares the episode's recorded environment hashes against the
//	reference. Divergence trips the quarantine latch with a replay
//	variance incident.
//
// Response:
//
//	200 OK: replay.Episode with variance and pass verdict
//	404 Not Found: Unknown episode
//	409 Conflict: Fewer than the minimum environments recorded
//	422 Unprocessable Entity: Hash divergence detected (system quarantined)
func (h *Handlers) HandleValidateReplay(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleValidateReplay")

	id := c.Param("id")
	ep, err := h.core.ValidateReplay(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, replay.ErrEpisodeNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "episode not found"})
		case errors.Is(err, replay.ErrInsufficientEnvironments):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.Is(err, replay.ErrHashDivergence):
			logger.Warn("Replay divergence", "episode_id", id)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"code":    quarantine.CodeReplayVariance,
				"episode": ep,
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, ep)
}
