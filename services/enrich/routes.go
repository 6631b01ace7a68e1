// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Enrich routes with the router.
//
// Description:
//
//	Registers all /v1/enrich/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/enrich/run - Run a bulk enrichment request
//	GET  /v1/enrich/health - Health check
//	GET  /v1/enrich/ready - Readiness check
//
// Example:
//
//	service := enrich.NewService(enrich.DefaultServiceConfig(), client)
//	handlers := enrich.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	enrich.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	enrich := rg.Group("/enrich")
	{
		enrich.POST("/run", handlers.HandleEnrich)

		// Health checks
		enrich.GET("/health", handlers.HandleHealth)
		enrich.GET("/ready", handlers.HandleReady)
	}
}
