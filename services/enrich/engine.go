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
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/summit/services/enrich/reference"
	"github.com/AleutianAI/summit/services/llm"
)

var engineTracer = otel.Tracer("summit.enrich.engine")

// Item-facing failure messages. These surface inline in the dashboard next
// to the offending record, so they stay short and user-readable.
const (
	errMsgNoResponse       = "failed to get a response from the model"
	errMsgEscalationFailed = "no response from model"
	errMsgStillAmbiguous   = "model did not return a valid yes/no answer"
)

// EngineConfig holds the engine's tunable parameters.
type EngineConfig struct {
	// PrimaryModel is the cheap/fast model used for every first-pass call.
	PrimaryModel string

	// FallbackModel is the higher-quality model used for escalation calls.
	FallbackModel string

	// BatchSize is the number of items per completion call. Default 15.
	BatchSize int

	// BatchConcurrency bounds how many batches are in flight at once.
	// Default 1 (sequential). Batches are independent units of failure, so
	// raising this changes latency, not correctness.
	BatchConcurrency int

	// CallTimeout is the deadline attached to each external call. A timed
	// out call is a batch-level failure, isolated to that batch's items.
	// Default 60s.
	CallTimeout time.Duration

	// MaxTokens limits each completion's length. Default 2048.
	MaxTokens int

	// Temperature for all completion calls. Enrichment answers should be
	// deterministic, so the default is 0.
	Temperature float32
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 1
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	return c
}

// Engine runs bulk enrichment requests.
//
// Description:
//
//	The engine owns no storage: records belong to the caller, results are
//	returned for the caller to persist, and the reference dataset is
//	fetched fresh per request through the Directory collaborator. The
//	only state on the struct is configuration and collaborators, so one
//	Engine serves concurrent requests.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	client    llm.CompletionClient
	directory reference.Directory
	extractor FieldExtractor
	cfg       EngineConfig
	logger    *slog.Logger
}

// EngineOption configures optional Engine collaborators.
type EngineOption func(*Engine)

// WithDirectory sets the reference dataset collaborator used for grounding.
// Without it, grounding requests degrade to ungrounded prompts.
func WithDirectory(d reference.Directory) EngineOption {
	return func(e *Engine) { e.directory = d }
}

// WithFieldExtractor sets the caller-supplied field-extraction collaborator.
// Without it, the engine reads record attributes directly.
func WithFieldExtractor(fn FieldExtractor) EngineOption {
	return func(e *Engine) { e.extractor = fn }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine.
//
// Inputs:
//   - client: The completion client. Must not be nil.
//   - cfg: Engine parameters; zero values take defaults.
//   - opts: Optional collaborators.
//
// Outputs:
//   - *Engine: The constructed engine. Never nil.
func NewEngine(client llm.CompletionClient, cfg EngineConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
	}
	if e.cfg.PrimaryModel == "" {
		e.cfg.PrimaryModel = client.Model()
	}
	if e.cfg.FallbackModel == "" {
		e.cfg.FallbackModel = e.cfg.PrimaryModel
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich runs one bulk enrichment request.
//
// Description:
//
//	Prepares every record, dispatches valid items in fixed-size batches
//	with bounded concurrency, and aggregates one result per input record.
//	Only request validation surfaces as an error; every later failure is
//	recovered into a per-item failure result — a partial-success response
//	is strictly more useful to the caller than an all-or-nothing failure.
//
// Inputs:
//   - ctx: Context for cancellation. Each external call additionally gets
//     the configured per-call deadline.
//   - req: The enrichment request.
//
// Outputs:
//   - []EnrichmentResult: Exactly one result per input record. Emission
//     order is preparation failures first, then batch order.
//   - error: Non-nil only for an invalid request; no partial results then.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Enrich(ctx context.Context, req EnrichmentRequest) ([]EnrichmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := engineTracer.Start(ctx, "enrich.Engine.Enrich",
		trace.WithAttributes(
			attribute.Int("items", len(req.Items)),
			attribute.String("column_type", string(req.ColumnType)),
			attribute.Bool("grounding", req.IncludeGroundingData),
		),
	)
	defer span.End()

	start := time.Now()

	// 1. Per-record preparation. Failures are isolated here and reported
	// first in the final list.
	prepared := prepareItems(req.Items, req.PromptTemplate, NewFieldResolver(e.extractor))
	var valid []PreparedItem
	var prepFailed []PreparedItem
	for _, item := range prepared {
		if item.Err != "" {
			prepFailed = append(prepFailed, item)
		} else {
			valid = append(valid, item)
		}
	}

	batches := chunkItems(valid, e.cfg.BatchSize)
	acc := NewResultAccumulator(len(batches))
	for _, item := range prepFailed {
		engineItemsTotal.WithLabelValues("preparation_error").Inc()
		acc.AddPreparationFailure(item.Record, item.Err)
	}

	// 2. Reference dataset, fetched once per request and only when asked.
	orgs := e.fetchReferenceData(ctx, req.IncludeGroundingData)

	// 3. Independent batches with bounded concurrency. Workers never
	// return errors: every batch failure is already converted into
	// failure results inside processBatch.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			acc.SetBatchResults(i, e.processBatch(gctx, batch, req, orgs))
			return nil
		})
	}
	_ = g.Wait()

	results := acc.Finalize()

	span.SetAttributes(attribute.Int("results", len(results)))
	e.logger.Info("enrichment request complete",
		slog.Int("items", len(req.Items)),
		slog.Int("batches", len(batches)),
		slog.Int("preparation_failures", len(prepFailed)),
		slog.Duration("duration", time.Since(start)),
	)

	if len(results) != len(req.Items) {
		// Accumulator construction guarantees one result per record; a
		// mismatch here is a bug worth failing loudly over.
		span.SetStatus(codes.Error, "result cardinality mismatch")
		return nil, fmt.Errorf("enrich: produced %d results for %d items", len(results), len(req.Items))
	}
	return results, nil
}

// fetchReferenceData loads the grounding dataset when grounding is enabled
// and a directory is configured. Fetch failure degrades to ungrounded
// operation rather than failing the request.
func (e *Engine) fetchReferenceData(ctx context.Context, groundingEnabled bool) []reference.Organization {
	if !groundingEnabled {
		return nil
	}
	if e.directory == nil {
		e.logger.Warn("grounding requested but no reference directory configured")
		engineGroundingTotal.WithLabelValues("disabled").Inc()
		return nil
	}
	orgs, err := e.directory.ListOrganizations(ctx)
	if err != nil {
		e.logger.Warn("reference dataset fetch failed, grounding degraded",
			slog.String("error", err.Error()),
		)
		engineGroundingTotal.WithLabelValues("degraded").Inc()
		return nil
	}
	return orgs
}

// processBatch runs one batch end to end: grounding, primary completion,
// parsing, escalation of ambiguous answers, and coercion.
//
// Outputs:
//   - []EnrichmentResult: Exactly one result per batch item, in batch order.
func (e *Engine) processBatch(ctx context.Context, batch []PreparedItem, req EnrichmentRequest, orgs []reference.Organization) []EnrichmentResult {
	ctx, span := engineTracer.Start(ctx, "enrich.Engine.processBatch",
		trace.WithAttributes(attribute.Int("batch_size", len(batch))),
	)
	defer span.End()

	system := systemInstruction(req.ColumnType)
	var grounding string
	if req.IncludeGroundingData {
		grounding = e.buildGroundingContext(ctx, batch, orgs)
		system = system + "\n\n" + grounding
	}

	reply, err := e.complete(ctx, e.cfg.PrimaryModel, system, buildBatchPrompt(batch), "primary")
	if err != nil {
		// The whole batch's completion call failed. Every item in this
		// batch fails; sibling batches are unaffected.
		e.logger.Warn("batch completion failed",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch completion failed")
		results := make([]EnrichmentResult, 0, len(batch))
		for _, item := range batch {
			engineItemsTotal.WithLabelValues("batch_error").Inc()
			results = append(results, EnrichmentResult{Item: item.Record, Error: errMsgNoResponse})
		}
		return results
	}

	parsed := parseBatchResponse(reply, batch)
	e.recordFragments(parsed.fragments)

	// Collect answers in batch order, flagging ambiguous ones.
	answers := make(map[string]*RawAnswer, len(batch))
	var ambiguous []PreparedItem
	for _, item := range batch {
		text, ok := parsed.answers[item.ID]
		if !ok {
			continue
		}
		answer := &RawAnswer{ItemID: item.ID, Text: text, SourceModel: e.cfg.PrimaryModel}
		if isAmbiguous(text, req.ColumnType) {
			answer.Ambiguous = true
			ambiguous = append(ambiguous, item)
		}
		answers[item.ID] = answer
	}

	if len(ambiguous) > 0 {
		e.escalate(ctx, ambiguous, answers, grounding, req.ColumnType)
	} else {
		engineEscalationTotal.WithLabelValues("skipped").Inc()
	}

	return e.coerceBatch(batch, answers, req.ColumnName, req.ColumnType)
}

// escalate resubmits only the ambiguous items to the fallback model.
//
// Description:
//
//	The ambiguous items are re-batched into a single escalation prompt
//	using the same positional convention and the same grounding context.
//	Accepted escalated answers overwrite the ambiguous placeholder and
//	carry the fallback model in SourceModel. If the escalation call
//	itself fails, the ambiguous answers are marked failed rather than
//	silently dropped.
func (e *Engine) escalate(ctx context.Context, ambiguous []PreparedItem, answers map[string]*RawAnswer, grounding string, columnType ColumnType) {
	ctx, span := engineTracer.Start(ctx, "enrich.Engine.escalate",
		trace.WithAttributes(
			attribute.Int("items", len(ambiguous)),
			attribute.String("fallback_model", e.cfg.FallbackModel),
		),
	)
	defer span.End()

	e.logger.Info("escalating ambiguous answers",
		slog.Int("items", len(ambiguous)),
		slog.String("fallback_model", e.cfg.FallbackModel),
	)

	system := systemInstruction(columnType)
	if grounding != "" {
		system = system + "\n\n" + grounding
	}

	reply, err := e.complete(ctx, e.cfg.FallbackModel, system, buildBatchPrompt(ambiguous), "escalation")
	if err != nil {
		e.logger.Warn("escalation call failed",
			slog.Int("items", len(ambiguous)),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "escalation call failed")
		engineEscalationTotal.WithLabelValues("error").Inc()
		for _, item := range ambiguous {
			answers[item.ID] = nil // failed: no response from fallback either
		}
		return
	}

	parsed := parseBatchResponse(reply, ambiguous)
	e.recordFragments(parsed.fragments)

	for _, item := range ambiguous {
		text, ok := parsed.answers[item.ID]
		if !ok {
			engineEscalationTotal.WithLabelValues("error").Inc()
			answers[item.ID] = nil
			continue
		}
		if isAmbiguous(text, columnType) {
			// The fallback model was no more decisive. Terminal failure;
			// there is no retry beyond the single escalation hop.
			engineEscalationTotal.WithLabelValues("invalid").Inc()
			answers[item.ID] = &RawAnswer{ItemID: item.ID, Text: text, SourceModel: e.cfg.FallbackModel, Ambiguous: true}
			continue
		}
		engineEscalationTotal.WithLabelValues("success").Inc()
		answers[item.ID] = &RawAnswer{ItemID: item.ID, Text: text, SourceModel: e.cfg.FallbackModel}
	}
}

// coerceBatch converts final answers into results, one per batch item.
func (e *Engine) coerceBatch(batch []PreparedItem, answers map[string]*RawAnswer, columnName string, columnType ColumnType) []EnrichmentResult {
	results := make([]EnrichmentResult, 0, len(batch))
	for _, item := range batch {
		answer, present := answers[item.ID]
		switch {
		case !present:
			// The model never answered this item and it was not ambiguous:
			// missing from the reply entirely.
			engineItemsTotal.WithLabelValues("missing_answer").Inc()
			results = append(results, EnrichmentResult{Item: item.Record, Error: errMsgNoResponse})
		case answer == nil:
			// Escalation call failed for this item.
			engineItemsTotal.WithLabelValues("escalation_failed").Inc()
			results = append(results, EnrichmentResult{Item: item.Record, Error: errMsgEscalationFailed})
		case answer.Ambiguous:
			// Still ambiguous after the single escalation hop.
			engineItemsTotal.WithLabelValues("escalation_failed").Inc()
			results = append(results, EnrichmentResult{Item: item.Record, Error: errMsgStillAmbiguous})
		default:
			value, err := coerceAnswer(answer.Text, columnType)
			if err != nil {
				engineItemsTotal.WithLabelValues("coercion_error").Inc()
				results = append(results, EnrichmentResult{Item: item.Record, Error: err.Error()})
				continue
			}
			engineItemsTotal.WithLabelValues("success").Inc()
			results = append(results, EnrichmentResult{
				Item:    item.Record,
				Success: true,
				EnrichedData: map[string]any{
					columnName:  value,
					SourceField: answer.SourceModel,
				},
			})
		}
	}
	return results
}

// recordFragments logs and counts reply text that belonged to no item.
func (e *Engine) recordFragments(fragments []string) {
	if len(fragments) == 0 {
		return
	}
	engineParseFragmentsTotal.Add(float64(len(fragments)))
	e.logger.Warn("reply contained unattributed fragments",
		slog.Int("fragments", len(fragments)),
	)
}

// complete runs one completion call with the configured per-call deadline,
// latency metric, and span.
func (e *Engine) complete(ctx context.Context, model, system, user, call string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	ctx, span := engineTracer.Start(ctx, "enrich.Engine.complete",
		trace.WithAttributes(
			attribute.String("model", model),
			attribute.String("call", call),
		),
	)
	defer span.End()

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	params := llm.GenerationParams{
		ModelOverride: model,
		MaxTokens:     &e.cfg.MaxTokens,
		Temperature:   &e.cfg.Temperature,
	}

	start := time.Now()
	reply, err := e.client.Chat(ctx, messages, params)
	engineCompletionLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion call failed")
		return "", err
	}
	return reply, nil
}
