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
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/summit/services/llm"
)

// Service is the HTTP-facing wrapper around the enrichment engine.
//
// Description:
//
//	Owns the Engine and the service configuration. Handlers talk to the
//	Service, never to the Engine directly, so deployment concerns
//	(configuration, readiness) stay out of the engine.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg    ServiceConfig
	engine *Engine
	client llm.CompletionClient
	logger *slog.Logger
}

// NewService creates a Service.
//
// Inputs:
//   - cfg: The service configuration.
//   - client: The completion client. Must not be nil.
//   - opts: Engine options (directory, field extractor, logger).
//
// Outputs:
//   - *Service: The constructed service. Never nil.
func NewService(cfg ServiceConfig, client llm.CompletionClient, opts ...EngineOption) *Service {
	return &Service{
		cfg:    cfg,
		engine: NewEngine(client, cfg.EngineConfig(), opts...),
		client: client,
		logger: slog.Default(),
	}
}

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Enrich runs one enrichment request through the engine.
func (s *Service) Enrich(ctx context.Context, req EnrichmentRequest) ([]EnrichmentResult, error) {
	return s.engine.Enrich(ctx, req)
}

// Ready reports whether the service can accept enrichment requests.
func (s *Service) Ready() error {
	if s.client == nil {
		return errors.New("no completion client configured")
	}
	return nil
}
