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
	"fmt"
	"sync"
	"testing"
)

func TestResultAccumulator_EmissionOrder(t *testing.T) {
	acc := NewResultAccumulator(2)

	// Batches finish out of order; emission order must not care.
	acc.SetBatchResults(1, []EnrichmentResult{{Item: Record{"id": "b1"}, Success: true}})
	acc.AddPreparationFailure(Record{"id": "p0"}, "bad template")
	acc.SetBatchResults(0, []EnrichmentResult{{Item: Record{"id": "a0"}, Success: true}})

	results := acc.Finalize()
	gotIDs := make([]string, 0, len(results))
	for _, r := range results {
		gotIDs = append(gotIDs, r.Item.ID())
	}

	want := []string{"p0", "a0", "b1"}
	for i, id := range want {
		if gotIDs[i] != id {
			t.Fatalf("expected emission order %v, got %v", want, gotIDs)
		}
	}
}

func TestResultAccumulator_ConcurrentBatchWrites(t *testing.T) {
	const batches = 8
	acc := NewResultAccumulator(batches)

	var wg sync.WaitGroup
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.SetBatchResults(i, []EnrichmentResult{
				{Item: Record{"id": fmt.Sprintf("r-%d", i)}, Success: true},
			})
		}()
	}
	wg.Wait()

	results := acc.Finalize()
	if len(results) != batches {
		t.Fatalf("expected %d results, got %d", batches, len(results))
	}
	for i, r := range results {
		if r.Item.ID() != fmt.Sprintf("r-%d", i) {
			t.Errorf("slot %d: expected r-%d, got %s", i, i, r.Item.ID())
		}
	}
}

func TestResultAccumulator_PreparationFailureShape(t *testing.T) {
	acc := NewResultAccumulator(0)
	acc.AddPreparationFailure(Record{"id": "p-1"}, "field extraction failed: boom")

	results := acc.Finalize()
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0]
	if r.Success || r.EnrichedData != nil {
		t.Error("expected a failure result without enriched data")
	}
	if r.Error != "field extraction failed: boom" {
		t.Errorf("expected preparation error message, got %q", r.Error)
	}
}
