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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(stub *stubCompletionClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(DefaultServiceConfig(), stub)
	handlers := NewHandlers(svc)

	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func postEnrich(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/enrich/run", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleEnrich_InvalidJSON(t *testing.T) {
	stub := &stubCompletionClient{chatFunc: func(chatCall) (string, error) {
		t.Fatal("model must not be called for malformed requests")
		return "", nil
	}}
	router := setupTestRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/enrich/run", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestHandleEnrich_ValidationFailure(t *testing.T) {
	stub := &stubCompletionClient{chatFunc: func(chatCall) (string, error) {
		t.Fatal("model must not be called before validation passes")
		return "", nil
	}}
	router := setupTestRouter(stub)

	w := postEnrich(t, router, map[string]any{
		"items":          []map[string]any{{"id": "r-1"}},
		"promptTemplate": "Is {{name}} active?",
		"columnName":     "active",
		"columnType":     "date", // unsupported
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Contains(t, resp.Error, "columnType")
}

func TestHandleEnrich_Success(t *testing.T) {
	stub := &stubCompletionClient{chatFunc: func(call chatCall) (string, error) {
		return echoAnswers(call.User, "yes", nil), nil
	}}
	router := setupTestRouter(stub)

	w := postEnrich(t, router, map[string]any{
		"items": []map[string]any{
			{"id": "r-1", "name": "Mercy Health"},
			{"id": "r-2", "name": "Summit Care"},
		},
		"promptTemplate": "Does {{name}} operate in Ohio?",
		"columnName":     "in_ohio",
		"columnType":     "boolean",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EnrichResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 0, resp.Failed)
	for _, r := range resp.Results {
		assert.True(t, r.Success)
		assert.Equal(t, true, r.EnrichedData["in_ohio"])
	}
}

func TestHandleEnrich_PartialFailureStillOK(t *testing.T) {
	stub := &stubCompletionClient{chatFunc: func(call chatCall) (string, error) {
		// Answer only the first item; the second becomes a per-item failure.
		return "Item 1 (ID: r-1): yes", nil
	}}
	router := setupTestRouter(stub)

	w := postEnrich(t, router, map[string]any{
		"items": []map[string]any{
			{"id": "r-1", "name": "A"},
			{"id": "r-2", "name": "B"},
		},
		"promptTemplate": "Is {{name}} active?",
		"columnName":     "active",
		"columnType":     "text",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp EnrichResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(&stubCompletionClient{})

	req := httptest.NewRequest(http.MethodGet, "/v1/enrich/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHandleReady(t *testing.T) {
	router := setupTestRouter(&stubCompletionClient{})

	req := httptest.NewRequest(http.MethodGet, "/v1/enrich/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}
