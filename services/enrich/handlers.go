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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error payload for all Enrich endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// EnrichResponse is the success payload for POST /v1/enrich/run.
type EnrichResponse struct {
	// Results holds one entry per input record.
	Results []EnrichmentResult `json:"results"`

	// Succeeded and Failed summarize the outcome split.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Handlers holds the HTTP handlers for the Enrich service.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	service *Service
}

// NewHandlers creates the Enrich handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleEnrich handles POST /v1/enrich/run.
//
// Description:
//
//	Validates the request body and runs it through the engine. Validation
//	failures return 400 before any model call is made. A successful run
//	always returns 200 with one result per input record: per-record
//	failures are reported inside the results, not as an HTTP error.
//
// Response:
//
//	200 OK: EnrichResponse
//	400 Bad Request: Malformed JSON or failed validation
//	500 Internal Server Error: Engine invariant violation
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleEnrich(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEnrich")

	var req EnrichmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_JSON",
		})
		return
	}

	if err := req.Validate(); err != nil {
		logger.Warn("request rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_FAILED",
		})
		return
	}

	results, err := h.service.Enrich(c.Request.Context(), req)
	if err != nil {
		logger.Error("enrichment failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "ENRICHMENT_FAILED",
		})
		return
	}

	resp := EnrichResponse{Results: results}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	logger.Info("enrichment complete",
		slog.Int("succeeded", resp.Succeeded),
		slog.Int("failed", resp.Failed),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/enrich/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/enrich/ready.
//
// Description:
//
//	Reports readiness to take enrichment traffic. Unlike health, this
//	checks that the service has a usable completion client.
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.service.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
