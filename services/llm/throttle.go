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
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a CompletionClient with a global requests-per-second
// limit shared across all callers.
//
// Description:
//
//	Provider rate limits apply per API key, not per goroutine, so the
//	limiter must be global to the client. A blocked Wait respects context
//	cancellation, so a per-call deadline still bounds total latency.
//
// Thread Safety: Safe for concurrent use.
type RateLimitedClient struct {
	inner   CompletionClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a global RPS limit.
//
// Inputs:
//   - inner: The client to wrap. Must not be nil.
//   - rps: Requests per second. Values <= 0 disable limiting (inner is
//     returned unwrapped).
//
// Outputs:
//   - CompletionClient: The wrapped client, or inner when rps <= 0.
func NewRateLimitedClient(inner CompletionClient, rps float64) CompletionClient {
	if rps <= 0 {
		return inner
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Chat waits for a rate token, then delegates to the wrapped client.
func (r *RateLimitedClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limiter wait: %w", err)
	}
	return r.inner.Chat(ctx, messages, params)
}

// Model returns the wrapped client's default model identifier.
func (r *RateLimitedClient) Model() string {
	return r.inner.Model()
}
