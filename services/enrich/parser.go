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
	"strconv"
	"strings"
)

// =============================================================================
// Response Parsing (answer line grammar v1)
// =============================================================================
//
// Grammar, version 1:
//
//	reply       = answer-line *( LF line )
//	answer-line = "Item " index " (ID: " id "):" [ " " ] answer
//	index       = 1*DIGIT
//
// An answer-line opens an item answer; following lines that do not parse as
// answer-lines continue the current answer (multi-line text answers). The
// parser fails closed: text that belongs to no accepted answer is returned
// as fragments and the affected items surface as missing answers — never
// silently dropped. Answers are accepted by item ID, not reply position,
// so a reordered reply still parses; the declared index is checked against
// the batch but an ID match wins.

// answerGrammarVersion identifies the reply format mandated by
// systemInstruction and parsed here.
const answerGrammarVersion = 1

const (
	answerLinePrefix = "Item "
	answerLineIDTag  = "(ID: "
)

// parsedBatch holds the outcome of parsing one batch reply.
type parsedBatch struct {
	// answers maps item ID to the accepted raw answer text.
	answers map[string]string

	// fragments lists reply text that could not be attributed to any batch
	// item: malformed lines before the first answer, answers for unknown
	// IDs, duplicate answers. Counted and logged by the caller.
	fragments []string
}

// parseAnswerLine parses one line against the answer grammar.
//
// Outputs:
//   - index: The declared 1-based item index.
//   - id: The declared item ID.
//   - answer: The answer text on the line. May be empty.
//   - ok: False when the line is not an answer-line.
func parseAnswerLine(line string) (index int, id string, answer string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), answerLinePrefix)
	if !found {
		return 0, "", "", false
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, "", "", false
	}
	index, err := strconv.Atoi(rest[:digits])
	if err != nil {
		return 0, "", "", false
	}
	rest = rest[digits:]

	rest, found = strings.CutPrefix(rest, " "+answerLineIDTag)
	if !found {
		return 0, "", "", false
	}

	// The ID runs to the last "):" on the line so IDs containing parens
	// still parse; the grammar forbids "):" inside answers' headers only.
	sep := strings.Index(rest, "):")
	if sep < 0 {
		return 0, "", "", false
	}
	id = rest[:sep]
	answer = strings.TrimPrefix(rest[sep+2:], " ")
	return index, id, answer, true
}

// parseBatchResponse parses a batch completion reply into per-item answers.
//
// Description:
//
//	Scans the reply line by line. An answer-line whose ID belongs to the
//	batch and has not answered yet is accepted; continuation lines extend
//	it. Everything else becomes a fragment. Batch items with no accepted
//	answer are simply absent from the result — the engine reports them as
//	missing-answer failures.
//
// Inputs:
//   - text: The model's reply. May be empty.
//   - batch: The dispatched items, for ID membership checks.
//
// Outputs:
//   - parsedBatch: Accepted answers by item ID plus unattributed fragments.
//
// Thread Safety: Safe for concurrent use (pure function).
func parseBatchResponse(text string, batch []PreparedItem) parsedBatch {
	known := make(map[string]bool, len(batch))
	for _, item := range batch {
		known[item.ID] = true
	}

	result := parsedBatch{answers: make(map[string]string, len(batch))}
	currentID := ""

	flushFragment := func(line string) {
		if strings.TrimSpace(line) != "" {
			result.fragments = append(result.fragments, line)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		_, id, answer, ok := parseAnswerLine(line)
		if !ok {
			// Continuation of the current answer, or an orphan fragment.
			if currentID != "" {
				result.answers[currentID] += "\n" + line
			} else {
				flushFragment(line)
			}
			continue
		}

		if !known[id] {
			// Answer for an ID outside this batch: fail closed.
			flushFragment(line)
			currentID = ""
			continue
		}
		if _, dup := result.answers[id]; dup {
			// Second answer for the same item: keep the first, flag the rest.
			flushFragment(line)
			currentID = ""
			continue
		}

		result.answers[id] = answer
		currentID = id
	}

	// Trim continuation padding.
	for id, answer := range result.answers {
		result.answers[id] = strings.TrimSpace(answer)
	}
	return result
}
