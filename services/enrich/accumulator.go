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

import "sync"

// ResultAccumulator collects per-item results across preparation and batch
// processing.
//
// Description:
//
//	Emission order is fixed regardless of batch scheduling: preparation
//	failures first (input order), then each batch's results in batch
//	order. Batches write into their own slot, so concurrent batch workers
//	never contend on ordering — only the slot assignment is locked.
//
// Thread Safety: Safe for concurrent use.
type ResultAccumulator struct {
	mu           sync.Mutex
	prepFailures []EnrichmentResult
	batches      [][]EnrichmentResult
}

// NewResultAccumulator creates an accumulator with one slot per batch.
func NewResultAccumulator(batchCount int) *ResultAccumulator {
	return &ResultAccumulator{
		batches: make([][]EnrichmentResult, batchCount),
	}
}

// AddPreparationFailure records a failure result for a record that never
// reached a batch.
func (a *ResultAccumulator) AddPreparationFailure(record Record, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prepFailures = append(a.prepFailures, EnrichmentResult{
		Item:    record,
		Success: false,
		Error:   message,
	})
}

// SetBatchResults stores the ordered results for one batch slot.
func (a *ResultAccumulator) SetBatchResults(batchIndex int, results []EnrichmentResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches[batchIndex] = results
}

// Finalize flattens the accumulated results: preparation failures first,
// then batches in dispatch order.
func (a *ResultAccumulator) Finalize() []EnrichmentResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	results := make([]EnrichmentResult, 0, len(a.prepFailures))
	results = append(results, a.prepFailures...)
	for _, batch := range a.batches {
		results = append(results, batch...)
	}
	return results
}
