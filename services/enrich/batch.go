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
	"strings"
)

// =============================================================================
// Batch Dispatch
// =============================================================================

// DefaultBatchSize is the number of items sent in one completion call.
// Large enough to amortize the per-call system prompt, small enough that a
// cheap model reliably answers every item.
const DefaultBatchSize = 15

// batchDelimiter separates item blocks in the outbound multi-item prompt.
const batchDelimiter = "\n\n---\n\n"

// chunkItems partitions items into fixed-size batches, preserving input
// order. The last batch may be shorter. Each batch is an independent unit
// of failure.
func chunkItems(items []PreparedItem, size int) [][]PreparedItem {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]PreparedItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// itemHeader renders the positional tag for one item. This exact format is
// the wire contract between the dispatcher and the response parser; change
// answerGrammarVersion when changing it.
func itemHeader(n int, id string) string {
	return fmt.Sprintf("Item %d (ID: %s)", n, id)
}

// buildBatchPrompt concatenates the batch's item blocks into one multi-item
// user prompt. Item numbers are 1-based positions within the batch.
func buildBatchPrompt(batch []PreparedItem) string {
	blocks := make([]string, 0, len(batch))
	for i, item := range batch {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s", itemHeader(i+1, item.ID), item.Prompt))
	}
	return strings.Join(blocks, batchDelimiter)
}

// typeInstruction is the per-column-type answer rule included in the system
// message.
func typeInstruction(columnType ColumnType) string {
	switch columnType {
	case ColumnBoolean:
		return "Respond with only yes or no."
	case ColumnNumber:
		return "Respond with only a single number."
	default:
		return "Provide a concise, informative response."
	}
}

// systemInstruction builds the system message for a batch completion call.
//
// Description:
//
//	Mandates the positional reply format for every item, answered
//	independently with no cross-item leakage, plus the column type's
//	answer rule. The reply format mirrors itemHeader exactly so the
//	parser can re-associate answers by both index and ID.
func systemInstruction(columnType ColumnType) string {
	var sb strings.Builder
	sb.WriteString("You are enriching records in bulk. ")
	sb.WriteString("The user message contains multiple items separated by \"---\". ")
	sb.WriteString("Answer every item independently; never let one item's content or answer influence another.\n\n")
	sb.WriteString("For each item, reply on its own line in exactly this format:\n")
	sb.WriteString("Item {n} (ID: {id}): {answer}\n")
	sb.WriteString("Keep each item's original number and ID. Do not add any other text.\n\n")
	sb.WriteString("Answer rule: ")
	sb.WriteString(typeInstruction(columnType))
	return sb.String()
}
