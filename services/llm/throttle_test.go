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
	"testing"
	"time"
)

type stubClient struct {
	calls int
	reply string
}

func (s *stubClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	s.calls++
	return s.reply, nil
}

func (s *stubClient) Model() string { return "stub-model" }

func TestNewRateLimitedClient_DisabledReturnsInner(t *testing.T) {
	inner := &stubClient{}
	client := NewRateLimitedClient(inner, 0)
	if client != CompletionClient(inner) {
		t.Error("rps <= 0 should return the inner client unwrapped")
	}
}

func TestRateLimitedClient_Delegates(t *testing.T) {
	inner := &stubClient{reply: "hello"}
	client := NewRateLimitedClient(inner, 100)

	got, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("response = %q", got)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if client.Model() != "stub-model" {
		t.Errorf("model = %q", client.Model())
	}
}

func TestRateLimitedClient_CanceledContext(t *testing.T) {
	inner := &stubClient{}
	client := NewRateLimitedClient(inner, 0.0001) // ~3 hours per token after the burst

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// First call consumes the burst token.
	if _, err := client.Chat(ctx, nil, GenerationParams{}); err != nil {
		t.Fatalf("first call should pass on the burst token: %v", err)
	}
	// Second call must block and then fail on the deadline.
	if _, err := client.Chat(ctx, nil, GenerationParams{}); err == nil {
		t.Fatal("expected deadline error from limiter wait")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}
