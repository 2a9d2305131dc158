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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all substrate routes with the router.
//
// Description:
//
//	Registers all /v1/substrate/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Lineage Endpoints:
//
//	GET  /v1/substrate/lineage - Shard metadata and global hash
//	GET  /v1/substrate/lineage/entries - Recent lineage entries
//	GET  /v1/substrate/lineage/verify/:hash - Ancestry verification
//	POST /v1/substrate/lineage/append - Record a mutating operation
//
// Checkpoint Endpoints:
//
//	GET  /v1/substrate/checkpoints - List retained checkpoints
//	POST /v1/substrate/checkpoint - Capture a checkpoint
//	GET  /v1/substrate/checkpoint/:id/export - Export integrity envelope
//	POST /v1/substrate/checkpoint/import - Import an exported envelope
//	POST /v1/substrate/rollback - Roll back to a checkpoint
//
// Governance Endpoints:
//
//	POST /v1/substrate/drift - Report a drift observation
//
// Quarantine Endpoints:
//
//	GET  /v1/substrate/quarantine - Latch state
//	GET  /v1/substrate/quarantine/incidents - Incident log
//	POST /v1/substrate/quarantine/clear - Clear with approval token
//
// Audit Endpoints:
//
//	GET  /v1/substrate/audit/corrections - Correction audit report
//	POST /v1/substrate/audit/corrections - Log a correction cycle
//
// Replay Endpoints:
//
//	POST /v1/substrate/replay/episodes - Open a determinism episode
//	POST /v1/substrate/replay/environments - Record an environment hash
//	POST /v1/substrate/replay/episodes/:id/validate - Run the proof
//
// Health Endpoints:
//
//	GET  /v1/substrate/health - Health summary
//	GET  /v1/substrate/ready - Quarantine-aware readiness
//
// Example:
//
//	core, _ := substrate.New(substrate.Options{})
//	handlers := substrate.NewHandlers(core, logger)
//
//	v1 := router.Group("/v1")
//	substrate.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	sub := rg.Group("/substrate")
	{
		// Lineage
		lineage := sub.Group("/lineage")
		{
			lineage.GET("", handlers.HandleLineage)
			lineage.GET("/entries", handlers.HandleLineageEntries)
			lineage.GET("/verify/:hash", handlers.HandleVerifyAncestry)
			lineage.POST("/append", handlers.HandleAppend)
		}

		// Checkpoint and rollback
		sub.GET("/checkpoints", handlers.HandleListCheckpoints)
		sub.POST("/checkpoint", handlers.HandleCreateCheckpoint)
		sub.GET("/checkpoint/:id/export", handlers.HandleExportCheckpoint)
		sub.POST("/checkpoint/import", handlers.HandleImportCheckpoint)
		sub.POST("/rollback", handlers.HandleRollback)

		// Governance drift
		sub.POST("/drift", handlers.HandleReportDrift)

		// Quarantine
		quarantine := sub.Group("/quarantine")
		{
			quarantine.GET("", handlers.HandleQuarantineState)
			quarantine.GET("/incidents", handlers.HandleQuarantineIncidents)
			quarantine.POST("/clear", handlers.HandleClearQuarantine)
		}

		// Correction audit
		audit := sub.Group("/audit")
		{
			audit.GET("/corrections", handlers.HandleCorrectionAudit)
			audit.POST("/corrections", handlers.HandleLogCorrection)
		}

		// Replay determinism
		replay := sub.Group("/replay")
		{
			replay.POST("/episodes", handlers.HandleCreateEpisode)
			replay.POST("/environments", handlers.HandleAddEnvironment)
			replay.POST("/episodes/:id/validate", handlers.HandleValidateReplay)
		}

		// Health checks
		sub.GET("/health", handlers.HandleHealth)
		sub.GET("/ready", handlers.HandleReady)
	}
}
