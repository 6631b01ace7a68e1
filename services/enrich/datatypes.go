// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enrich implements the Summit bulk entity enrichment engine: it
// takes a collection of dashboard records, a user-authored prompt template,
// and a target column, and derives one typed value per record by batching
// calls to an LLM completion service. Ambiguous boolean answers are
// escalated once to a higher-quality fallback model; prompts can optionally
// be grounded against the known-organization reference dataset.
//
// Every input record yields exactly one result, success or failure. All
// failures past request validation are per-item or per-batch and never
// abort the request.
package enrich

import (
	"fmt"
	"strconv"
)

// ColumnType is the declared type of the target column.
type ColumnType string

// Supported column types.
const (
	ColumnBoolean ColumnType = "boolean"
	ColumnNumber  ColumnType = "number"
	ColumnText    ColumnType = "text"
)

// Valid reports whether t is a supported column type.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnBoolean, ColumnNumber, ColumnText:
		return true
	}
	return false
}

// SourceField is the key in EnrichmentResult.EnrichedData that records which
// model produced the accepted answer.
const SourceField = "_source"

// Record is an opaque domain object owned by the caller. It has a stable
// "id" attribute and arbitrary named attributes. The engine never mutates
// a Record.
type Record map[string]any

// ID returns the record's stable identifier, rendered as a string.
// Returns "" when the record has no id attribute.
func (r Record) ID() string {
	v, ok := r["id"]
	if !ok {
		return ""
	}
	return attrString(v)
}

// Attr returns the string rendering of a named attribute and whether the
// attribute exists.
func (r Record) Attr(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}
	return attrString(v), true
}

// attrString renders an attribute value for prompt substitution. JSON
// numbers decode as float64; integral values are rendered without a
// trailing ".0" so templates read naturally.
func attrString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// EnrichmentRequest is one immutable bulk enrichment invocation.
type EnrichmentRequest struct {
	// Items are the caller's domain records. Must be non-empty.
	Items []Record `json:"items" binding:"required"`

	// PromptTemplate may contain {{variable}} placeholders resolved per record.
	PromptTemplate string `json:"promptTemplate" binding:"required"`

	// ColumnName is the target attribute to derive.
	ColumnName string `json:"columnName" binding:"required"`

	// ColumnType is one of "boolean", "number", "text".
	ColumnType ColumnType `json:"columnType" binding:"required"`

	// IncludeGroundingData enables reference-dataset grounding for this request.
	IncludeGroundingData bool `json:"includeGroundingData"`
}

// Validate checks the request before any model call is made.
//
// Outputs:
//   - error: Non-nil with a descriptive message on the first violation.
func (r *EnrichmentRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("items must be a non-empty array")
	}
	if r.PromptTemplate == "" {
		return fmt.Errorf("promptTemplate must be a non-empty string")
	}
	if r.ColumnName == "" {
		return fmt.Errorf("columnName must be a non-empty string")
	}
	if !r.ColumnType.Valid() {
		return fmt.Errorf("columnType must be one of boolean, number, text (got %q)", r.ColumnType)
	}
	return nil
}

// EnrichmentResult is the outcome for one input record. Exactly one result
// is produced per input record.
type EnrichmentResult struct {
	// Item is the original record, echoed back untouched.
	Item Record `json:"item"`

	// Success reports whether EnrichedData holds an accepted value.
	Success bool `json:"success"`

	// EnrichedData maps the target column name to the coerced value, plus
	// SourceField naming the model that produced it. Nil on failure.
	EnrichedData map[string]any `json:"enrichedData,omitempty"`

	// Error describes the per-item failure. Empty on success.
	Error string `json:"error,omitempty"`
}

// ExtractedField is one field produced by the caller's field-extraction
// collaborator.
type ExtractedField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldExtractor is the caller-supplied "all fields for record" collaborator.
// It is optional; when absent the engine falls back to direct attribute
// access on the record.
type FieldExtractor func(Record) ([]ExtractedField, error)

// FieldMap maps lowercased variable names to string values for one record.
// It is derived per record and discarded after template resolution.
type FieldMap map[string]string

// PreparedItem is one record paired with its resolved prompt, or with the
// preparation error that excluded it from batching. Created once per record
// at request start and consumed by exactly one batch.
type PreparedItem struct {
	ID     string
	Prompt string
	Record Record

	// Err is non-empty when field/template resolution failed.
	Err string
}

// RawAnswer is the parsed per-item answer text from one completion call.
type RawAnswer struct {
	ItemID      string
	Text        string
	SourceModel string

	// Ambiguous marks answers that failed the column type's validity rule
	// and are queued for escalation.
	Ambiguous bool
}
