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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	engineItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "summit",
		Subsystem: "enrich",
		Name:      "items_total",
		Help:      "Item outcomes: success, preparation_error, batch_error, missing_answer, escalation_failed, coercion_error",
	}, []string{"outcome"})

	engineEscalationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "summit",
		Subsystem: "enrich",
		Name:      "escalation_total",
		Help:      "Escalation events by outcome: success, invalid, error, skipped",
	}, []string{"outcome"})

	engineCompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "summit",
		Subsystem: "enrich",
		Name:      "completion_latency_seconds",
		Help:      "Latency of completion calls by purpose: primary, escalation, extraction",
		Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"call"})

	engineGroundingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "summit",
		Subsystem: "enrich",
		Name:      "grounding_total",
		Help:      "Grounding outcomes per batch: matched, unmatched, degraded, disabled",
	}, []string{"outcome"})

	engineParseFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "summit",
		Subsystem: "enrich",
		Name:      "parse_fragments_total",
		Help:      "Reply fragments that could not be attributed to any batch item",
	})
)
