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
	"testing"
)

// =============================================================================
// parseAnswerLine Tests
// =============================================================================

func TestParseAnswerLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantIndex  int
		wantID     string
		wantAnswer string
		wantOK     bool
	}{
		{"simple", "Item 1 (ID: a-1): yes", 1, "a-1", "yes", true},
		{"two digit index", "Item 12 (ID: rec): 42", 12, "rec", "42", true},
		{"empty answer", "Item 3 (ID: a-3):", 3, "a-3", "", true},
		{"leading whitespace", "  Item 1 (ID: a-1): no", 1, "a-1", "no", true},
		{"id containing parens", "Item 2 (ID: x(1)): yes", 2, "x(1)", "yes", true},
		{"not an answer line", "some free text", 0, "", "", false},
		{"missing index", "Item (ID: a-1): yes", 0, "", "", false},
		{"missing id tag", "Item 1: yes", 0, "", "", false},
		{"missing close", "Item 1 (ID: a-1 yes", 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, id, answer, ok := parseAnswerLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok: expected %v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if index != tt.wantIndex || id != tt.wantID || answer != tt.wantAnswer {
				t.Errorf("expected (%d, %q, %q), got (%d, %q, %q)",
					tt.wantIndex, tt.wantID, tt.wantAnswer, index, id, answer)
			}
		})
	}
}

// =============================================================================
// parseBatchResponse Tests
// =============================================================================

func TestParseBatchResponse_ReorderedReply(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}, {ID: "a-2"}, {ID: "a-3"}}

	// Reply order differs from dispatch order; ID matching must win.
	reply := "Item 3 (ID: a-3): no\nItem 1 (ID: a-1): yes\nItem 2 (ID: a-2): no"

	parsed := parseBatchResponse(reply, batch)
	if parsed.answers["a-1"] != "yes" || parsed.answers["a-2"] != "no" || parsed.answers["a-3"] != "no" {
		t.Errorf("expected answers keyed by ID regardless of order, got %v", parsed.answers)
	}
}

func TestParseBatchResponse_MultilineAnswer(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}, {ID: "a-2"}}

	reply := "Item 1 (ID: a-1): The organization runs\nthree regional hospitals.\nItem 2 (ID: a-2): short"

	parsed := parseBatchResponse(reply, batch)
	want := "The organization runs\nthree regional hospitals."
	if parsed.answers["a-1"] != want {
		t.Errorf("expected continuation lines joined, got %q", parsed.answers["a-1"])
	}
	if parsed.answers["a-2"] != "short" {
		t.Errorf("expected second answer unaffected, got %q", parsed.answers["a-2"])
	}
}

func TestParseBatchResponse_UnknownIDFailsClosed(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}}

	reply := "Item 1 (ID: a-1): yes\nItem 2 (ID: stranger): no"

	parsed := parseBatchResponse(reply, batch)
	if _, ok := parsed.answers["stranger"]; ok {
		t.Error("expected answer for unknown ID to be rejected")
	}
	if len(parsed.fragments) != 1 {
		t.Errorf("expected rejected line surfaced as fragment, got %v", parsed.fragments)
	}
}

func TestParseBatchResponse_DuplicateKeepsFirst(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}}

	reply := "Item 1 (ID: a-1): yes\nItem 1 (ID: a-1): no"

	parsed := parseBatchResponse(reply, batch)
	if parsed.answers["a-1"] != "yes" {
		t.Errorf("expected first answer kept, got %q", parsed.answers["a-1"])
	}
	if len(parsed.fragments) != 1 {
		t.Errorf("expected duplicate flagged as fragment, got %v", parsed.fragments)
	}
}

func TestParseBatchResponse_OrphanPreamble(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}}

	reply := "Sure, here are the answers:\n\nItem 1 (ID: a-1): yes"

	parsed := parseBatchResponse(reply, batch)
	if parsed.answers["a-1"] != "yes" {
		t.Errorf("expected answer parsed after preamble, got %v", parsed.answers)
	}
	if len(parsed.fragments) != 1 {
		t.Errorf("expected non-empty preamble line as fragment, got %v", parsed.fragments)
	}
}

func TestParseBatchResponse_MissingItem(t *testing.T) {
	batch := []PreparedItem{{ID: "a-1"}, {ID: "a-2"}}

	parsed := parseBatchResponse("Item 1 (ID: a-1): yes", batch)
	if len(parsed.answers) != 1 {
		t.Fatalf("expected exactly one answer, got %v", parsed.answers)
	}
	if _, ok := parsed.answers["a-2"]; ok {
		t.Error("expected omitted item absent from answers, not defaulted")
	}
}

func TestParseBatchResponse_EmptyReply(t *testing.T) {
	parsed := parseBatchResponse("", []PreparedItem{{ID: "a-1"}})
	if len(parsed.answers) != 0 {
		t.Errorf("expected no answers on empty reply, got %v", parsed.answers)
	}
	if len(parsed.fragments) != 0 {
		t.Errorf("expected no fragments for empty reply, got %v", parsed.fragments)
	}
}
