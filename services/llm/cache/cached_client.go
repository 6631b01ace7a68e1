// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/summit/services/llm"
)

// CachedClient wraps a CompletionClient with the replay cache.
//
// Description:
//
//	On each Chat call the request is hashed; a hit returns the stored
//	reply without touching the provider. Store failures never fail the
//	call: a load error falls through to the provider, a save error is
//	logged and dropped.
//
// Thread Safety: Safe for concurrent use if the Store is.
type CachedClient struct {
	inner  llm.CompletionClient
	store  Store
	logger *slog.Logger
}

// NewCachedClient wraps inner with the given store.
//
// Description:
//
//	A nil store disables caching: inner is returned unwrapped so callers
//	can wire the cache unconditionally and let configuration decide.
//
// Inputs:
//   - inner: The provider client. Must not be nil.
//   - store: The cache store. May be nil.
//   - logger: Logger for cache diagnostics. May be nil.
//
// Outputs:
//   - llm.CompletionClient: The wrapped client, or inner when store is nil.
func NewCachedClient(inner llm.CompletionClient, store Store, logger *slog.Logger) llm.CompletionClient {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{inner: inner, store: store, logger: logger}
}

// Chat answers from the cache when possible, otherwise delegates to the
// wrapped client and stores the reply.
func (c *CachedClient) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	model := params.ModelOverride
	if model == "" {
		model = c.inner.Model()
	}
	key := hashRequest(model, messages, params)

	reply, hit, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("completion cache load failed", slog.String("error", err.Error()))
	} else if hit {
		return reply, nil
	}

	reply, err = c.inner.Chat(ctx, messages, params)
	if err != nil {
		return "", err
	}

	if err := c.store.Save(ctx, key, reply); err != nil {
		c.logger.Warn("completion cache save failed", slog.String("error", err.Error()))
	}
	return reply, nil
}

// Model returns the wrapped client's default model.
func (c *CachedClient) Model() string {
	return c.inner.Model()
}
