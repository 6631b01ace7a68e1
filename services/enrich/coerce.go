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
	"math"
	"strconv"
	"strings"
)

// coerceAnswer converts a raw answer into the target column's typed value.
//
// Description:
//
//	Boolean: true iff the trimmed, lowercased answer equals "yes" (the
//	validity of yes/no was already enforced by ambiguity detection).
//	Number: parsed as float64; NaN and unparseable text are coercion
//	errors. Text: passed through trimmed. A coercion error is per-item
//	and never affects sibling items in the same batch.
//
// Inputs:
//   - raw: The final answer text from the model.
//   - columnType: The declared target type.
//
// Outputs:
//   - any: The typed value (bool, float64, or string).
//   - error: Non-nil with the item-facing message on coercion failure.
//
// Thread Safety: Safe for concurrent use (pure function).
func coerceAnswer(raw string, columnType ColumnType) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch columnType {
	case ColumnBoolean:
		return strings.EqualFold(trimmed, "yes"), nil
	case ColumnNumber:
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(n) {
			return nil, fmt.Errorf("model did not return a valid number")
		}
		return n, nil
	default:
		return trimmed, nil
	}
}

// isAmbiguous applies the column type's validity rule to a raw answer.
//
// Description:
//
//	Boolean answers are valid only when, trimmed and lowercased, they are
//	exactly "yes" or "no"; anything else is ambiguous and queued for
//	escalation. Number and Text columns intentionally have no validity
//	rule at this stage — escalation is Boolean-only. Extending it to
//	other types changes the cost and latency profile materially, so that
//	is a product decision, not a code change.
func isAmbiguous(answer string, columnType ColumnType) bool {
	if columnType != ColumnBoolean {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(answer))
	return normalized != "yes" && normalized != "no"
}
