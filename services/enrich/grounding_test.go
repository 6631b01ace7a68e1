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
	"strings"
	"testing"

	"github.com/AleutianAI/summit/services/enrich/reference"
)

func testOrgs() []reference.Organization {
	return []reference.Organization{
		{
			Name:          "Mercy Health",
			Type:          "Health System",
			VendorFields:  map[string]string{"ehr": "Epic", "erp": "Workday"},
			Revenue:       "$2.1B",
			BedCount:      450,
			HospitalCount: 3,
			Website:       "https://mercy.example.org",
			Location:      "Cincinnati, OH",
		},
		{Name: "Summit Care Alliance", Type: "IDN"},
	}
}

// =============================================================================
// buildGroundingContext Tests
// =============================================================================

func TestBuildGroundingContext_MatchedFacts(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		return "Item 1 (ID: a-1): Mercy Health\nItem 2 (ID: a-2): " + noExtractionToken, nil
	}
	engine := NewEngine(stub, testEngineConfig())

	batch := []PreparedItem{
		{ID: "a-1", Prompt: "Does Mercy Health use Epic?"},
		{ID: "a-2", Prompt: "What is the sky?"},
	}
	grounding := engine.buildGroundingContext(context.Background(), batch, testOrgs())

	if !strings.Contains(grounding, "Known facts") {
		t.Fatalf("expected known-facts block, got:\n%s", grounding)
	}
	for _, fact := range []string{"Mercy Health", "Epic", "$2.1B", "450", "Cincinnati, OH"} {
		if !strings.Contains(grounding, fact) {
			t.Errorf("expected fact %q in grounding context", fact)
		}
	}
	if !strings.Contains(grounding, "Do not mention that this context was looked up") {
		t.Error("expected silent-use instruction in grounding context")
	}
	if strings.Contains(grounding, "Summit Care Alliance") {
		t.Error("expected only matched organizations rendered")
	}
}

func TestBuildGroundingContext_VendorFieldsDeterministic(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		return "Item 1 (ID: a-1): Mercy Health", nil
	}
	engine := NewEngine(stub, testEngineConfig())
	batch := []PreparedItem{{ID: "a-1", Prompt: "p"}}

	first := engine.buildGroundingContext(context.Background(), batch, testOrgs())
	for i := 0; i < 5; i++ {
		if got := engine.buildGroundingContext(context.Background(), batch, testOrgs()); got != first {
			t.Fatal("expected identical grounding text across renders")
		}
	}
}

func TestBuildGroundingContext_NoMatches(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		return "Item 1 (ID: a-1): Completely Unknown Org", nil
	}
	engine := NewEngine(stub, testEngineConfig())

	grounding := engine.buildGroundingContext(context.Background(),
		[]PreparedItem{{ID: "a-1", Prompt: "p"}}, testOrgs())

	if grounding != groundingEmptyMessage {
		t.Errorf("expected empty-dataset disclosure, got:\n%s", grounding)
	}
}

func TestBuildGroundingContext_ExtractionFailureDegrades(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		return "", errors.New("provider down")
	}
	engine := NewEngine(stub, testEngineConfig())

	grounding := engine.buildGroundingContext(context.Background(),
		[]PreparedItem{{ID: "a-1", Prompt: "p"}}, testOrgs())

	if grounding != groundingFallbackMessage {
		t.Errorf("expected generic grounding message on extraction failure, got:\n%s", grounding)
	}
}

// =============================================================================
// Grounded Enrichment End-to-End
// =============================================================================

func TestEnrich_GroundingInjectedIntoSystemMessage(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		if strings.Contains(call.System, "extract the single organization") {
			return echoAnswers(call.User, "Mercy Health", nil), nil
		}
		return echoAnswers(call.User, "yes", nil), nil
	}

	directory := &reference.StaticDirectory{Organizations: testOrgs()}
	engine := NewEngine(stub, testEngineConfig(), WithDirectory(directory))

	req := booleanRequest(makeRecords(2))
	req.IncludeGroundingData = true

	results, err := engine.Enrich(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("record %s: expected success, got %q", r.Item.ID(), r.Error)
		}
	}

	calls := stub.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected 1 extraction + 1 primary call, got %d", len(calls))
	}
	primary := calls[1]
	if !strings.Contains(primary.System, "Known facts") {
		t.Error("expected grounding facts appended to the primary system message")
	}
}

func TestEnrich_DirectoryFetchFailureDegrades(t *testing.T) {
	stub := &stubCompletionClient{}
	stub.chatFunc = func(call chatCall) (string, error) {
		if strings.Contains(call.System, "extract the single organization") {
			return echoAnswers(call.User, "Mercy Health", nil), nil
		}
		return echoAnswers(call.User, "no", nil), nil
	}

	engine := NewEngine(stub, testEngineConfig(), WithDirectory(failingDirectory{}))

	req := booleanRequest(makeRecords(1))
	req.IncludeGroundingData = true

	results, err := engine.Enrich(context.Background(), req)
	if err != nil {
		t.Fatalf("expected degraded grounding, not request failure: %v", err)
	}
	if !results[0].Success {
		t.Errorf("expected ungrounded success, got %q", results[0].Error)
	}
}

type failingDirectory struct{}

func (failingDirectory) ListOrganizations(context.Context) ([]reference.Organization, error) {
	return nil, errors.New("dataset unreachable")
}
