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
	"regexp"
	"strings"
)

// =============================================================================
// Field Resolution
// =============================================================================

// FieldResolver maps a record to its FieldMap for template expansion.
//
// Description:
//
//	Two strategies exist: ExtractorResolver wraps the caller-supplied
//	field-extraction collaborator, AttributeResolver reads the record's
//	attributes directly. NewFieldResolver composes them with extractor
//	precedence when a collaborator is configured.
//
// Thread Safety: Implementations must be safe for concurrent use.
type FieldResolver interface {
	// Resolve builds the lowercased variable-name map for one record.
	//
	// Outputs:
	//   - FieldMap: The resolved map. Never nil on success.
	//   - error: Non-nil when the extraction collaborator failed; the
	//     caller converts this into a per-record preparation error.
	Resolve(record Record) (FieldMap, error)
}

// ExtractorResolver resolves fields through the caller-supplied extraction
// collaborator. Labels are lowercased to form the map keys.
type ExtractorResolver struct {
	Extract FieldExtractor
}

// Resolve invokes the collaborator, recovering a panic into an error so a
// misbehaving caller function is isolated to its record.
func (e *ExtractorResolver) Resolve(record Record) (fields FieldMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("field extraction panicked: %v", r)
		}
	}()

	extracted, err := e.Extract(record)
	if err != nil {
		return nil, fmt.Errorf("field extraction failed: %w", err)
	}
	fields = make(FieldMap, len(extracted))
	for _, f := range extracted {
		fields[strings.ToLower(f.Label)] = f.Value
	}
	return fields, nil
}

// AttributeResolver resolves fields by direct attribute access on the record.
type AttributeResolver struct{}

// Resolve lowercases every attribute name into the map. Never fails.
func (AttributeResolver) Resolve(record Record) (FieldMap, error) {
	fields := make(FieldMap, len(record))
	for name := range record {
		if v, ok := record.Attr(name); ok {
			fields[strings.ToLower(name)] = v
		}
	}
	return fields, nil
}

// NewFieldResolver returns the resolver for the configured collaborator:
// ExtractorResolver when extract is non-nil, AttributeResolver otherwise.
func NewFieldResolver(extract FieldExtractor) FieldResolver {
	if extract != nil {
		return &ExtractorResolver{Extract: extract}
	}
	return AttributeResolver{}
}

// =============================================================================
// Template Expansion
// =============================================================================

// templateVarPattern matches {{variable}} placeholders. The variable name
// is trimmed before lookup.
var templateVarPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// ExpandTemplate replaces every {{name}} placeholder in the template.
//
// Description:
//
//	Lookup precedence per placeholder: the field map (case-insensitive,
//	trimmed key), then the record's raw attribute under the literal name,
//	then the empty string. A missing variable is data, not an error — this
//	function never fails and is pure: no I/O, no randomness.
//
// Inputs:
//   - template: The user-authored template. May contain no placeholders.
//   - fields: The record's resolved FieldMap. May be nil.
//   - record: The record, for raw-attribute fallback.
//
// Outputs:
//   - string: The resolved prompt.
//
// Thread Safety: Safe for concurrent use.
func ExpandTemplate(template string, fields FieldMap, record Record) string {
	return templateVarPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		name := strings.TrimSpace(placeholder[2 : len(placeholder)-2])
		if name == "" {
			return ""
		}
		if v, ok := fields[strings.ToLower(name)]; ok {
			return v
		}
		if v, ok := record.Attr(name); ok {
			return v
		}
		return ""
	})
}

// prepareItems resolves fields and expands the template for every record.
//
// Description:
//
//	One PreparedItem per record, in input order. A resolution failure is
//	captured in the item's Err field and isolated to that record; it never
//	affects siblings.
func prepareItems(records []Record, template string, resolver FieldResolver) []PreparedItem {
	items := make([]PreparedItem, 0, len(records))
	for _, record := range records {
		item := PreparedItem{ID: record.ID(), Record: record}
		fields, err := resolver.Resolve(record)
		if err != nil {
			item.Err = err.Error()
		} else {
			item.Prompt = ExpandTemplate(template, fields, record)
		}
		items = append(items, item)
	}
	return items
}
