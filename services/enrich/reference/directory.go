// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reference provides the read-only organization directory used to
// ground enrichment prompts. The directory is a caller-owned dataset of
// known health systems; the engine fetches it fresh at the start of each
// request and never writes to it.
package reference

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Organization is one known entity in the reference dataset.
//
// Description:
//
//	Fields mirror the health-system table of the Summit dashboard. All
//	fields except Name are optional; empty fields are omitted from the
//	rendered grounding facts.
type Organization struct {
	Name          string            `yaml:"name" json:"name"`
	Type          string            `yaml:"type,omitempty" json:"type,omitempty"`
	VendorFields  map[string]string `yaml:"vendor_fields,omitempty" json:"vendorFields,omitempty"`
	Revenue       string            `yaml:"revenue,omitempty" json:"revenue,omitempty"`
	BedCount      int               `yaml:"bed_count,omitempty" json:"bedCount,omitempty"`
	HospitalCount int               `yaml:"hospital_count,omitempty" json:"hospitalCount,omitempty"`
	Website       string            `yaml:"website,omitempty" json:"website,omitempty"`
	Location      string            `yaml:"location,omitempty" json:"location,omitempty"`
}

// Directory lists known organizations for grounding.
//
// Description:
//
//	The engine calls ListOrganizations once per enrichment request when
//	grounding is enabled (never cached across requests) and matches
//	extracted candidate names against the result.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Directory interface {
	// ListOrganizations returns the full reference dataset.
	//
	// Outputs:
	//   - []Organization: All known organizations. May be empty.
	//   - error: Non-nil if the dataset cannot be fetched.
	ListOrganizations(ctx context.Context) ([]Organization, error)
}

// StaticDirectory is an in-memory Directory. Used in tests and for small
// fixed datasets.
type StaticDirectory struct {
	Organizations []Organization
}

// ListOrganizations returns the static dataset.
func (s *StaticDirectory) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.Organizations, nil
}

// FileDirectory loads the dataset from a YAML file on every call.
//
// Description:
//
//	Re-reading per call keeps the per-request freshness contract without a
//	watcher: edits to the file show up on the next enrichment request. The
//	file holds a top-level "organizations" list.
//
// Thread Safety: Safe for concurrent use (stateless between calls).
type FileDirectory struct {
	Path string
}

type directoryFile struct {
	Organizations []Organization `yaml:"organizations"`
}

// NewFileDirectory creates a FileDirectory for the given path.
func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{Path: path}
}

// ListOrganizations reads and parses the YAML dataset file.
//
// Outputs:
//   - []Organization: The parsed organizations. Empty if the file lists none.
//   - error: Non-nil if the file is missing or has invalid YAML.
func (f *FileDirectory) ListOrganizations(ctx context.Context) ([]Organization, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reference: reading %s: %w", f.Path, err)
	}
	var parsed directoryFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("reference: parsing %s: %w", f.Path, err)
	}
	return parsed.Organizations, nil
}
