// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropicClient_MissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "anthropic:") {
		t.Errorf("error should include 'anthropic:' prefix, got: %s", err.Error())
	}
}

func TestAnthropicClient_Chat_SystemLifted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q, want %q", got, anthropicAPIVersion)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// System messages must be lifted out of the messages array.
		if req.System != "Respond with only yes or no." {
			t.Errorf("system = %q", req.System)
		}
		for _, m := range req.Messages {
			if m.Role == "system" {
				t.Error("system role leaked into messages array")
			}
		}
		if req.MaxTokens != anthropicDefaultMaxTokens {
			t.Errorf("max_tokens = %d, want default %d", req.MaxTokens, anthropicDefaultMaxTokens)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "Item 1 (ID: a): no"}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	messages := []Message{
		{Role: "system", Content: "Respond with only yes or no."},
		{Role: "user", Content: "Item 1 (ID: a):\nIs this a health system?"},
	}
	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Item 1 (ID: a): no" {
		t.Errorf("response = %q", got)
	}
}

func TestAnthropicClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(anthropicResponse{
			Error: &anthropicError{Type: "overloaded_error", Message: "try later"},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for API error payload")
	}
	if !strings.Contains(err.Error(), "overloaded_error") {
		t.Errorf("unexpected error: %v", err)
	}
}
