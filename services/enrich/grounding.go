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
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/summit/services/enrich/reference"
)

// =============================================================================
// Grounding Matcher
// =============================================================================

// noExtractionToken is the model's reply for items with no recognizable
// organization name.
const noExtractionToken = "NO_EXTRACTION_POSSIBLE"

// groundingFallbackMessage is injected when the extraction step fails for
// any reason. Grounding degrades; the batch itself is never aborted.
const groundingFallbackMessage = "Our reference dataset could not be consulted for these items. " +
	"Answer from your general knowledge."

// groundingEmptyMessage is injected when extraction worked but no item
// matched the reference dataset.
const groundingEmptyMessage = "Our reference dataset was checked and contains no entry for any of " +
	"these items. Answer from your general knowledge."

// extractionInstruction is the system message for the per-batch name
// extraction call. It reuses the positional answer grammar so the same
// parser handles the reply.
func extractionInstruction() string {
	var sb strings.Builder
	sb.WriteString("The user message contains multiple items separated by \"---\". ")
	sb.WriteString("For each item, extract the single organization or entity name the item is about.\n\n")
	sb.WriteString("Reply with exactly one line per item in the format:\n")
	sb.WriteString("Item {n} (ID: {id}): {name}\n")
	sb.WriteString("Keep each item's original number and ID. ")
	sb.WriteString("If no organization or entity name can be extracted from an item, answer ")
	sb.WriteString(noExtractionToken)
	sb.WriteString(" for that item. Do not add any other text.")
	return sb.String()
}

// groundingMatch pairs one batch item with an organization matched from the
// reference dataset. Built and discarded within a single batch's grounding
// step; never cached across batches or requests.
type groundingMatch struct {
	itemIndex     int
	itemID        string
	candidateName string
	org           reference.Organization
}

// buildGroundingContext produces the grounding text for one batch.
//
// Description:
//
//	Issues one extraction call for the batch, fuzzy-matches each extracted
//	name against the reference dataset, and renders a known-facts block
//	for the matched items. Extraction failure of any kind degrades to a
//	generic grounding message — a grounding problem must never fail the
//	batch.
//
// Inputs:
//   - ctx: Context for the extraction call.
//   - batch: The dispatched items.
//   - orgs: The reference dataset fetched for this request.
//
// Outputs:
//   - string: Grounding text to append to the system message. Never empty.
func (e *Engine) buildGroundingContext(ctx context.Context, batch []PreparedItem, orgs []reference.Organization) string {
	reply, err := e.complete(ctx, e.cfg.PrimaryModel, extractionInstruction(), buildBatchPrompt(batch), "extraction")
	if err != nil {
		e.logger.Warn("grounding extraction failed, using generic grounding message",
			slog.String("error", err.Error()),
		)
		engineGroundingTotal.WithLabelValues("degraded").Inc()
		return groundingFallbackMessage
	}

	parsed := parseBatchResponse(reply, batch)

	var matches []groundingMatch
	for i, item := range batch {
		name, ok := parsed.answers[item.ID]
		if !ok || strings.EqualFold(strings.TrimSpace(name), noExtractionToken) {
			continue
		}
		for _, org := range reference.MatchName(orgs, name) {
			matches = append(matches, groundingMatch{
				itemIndex:     i + 1,
				itemID:        item.ID,
				candidateName: name,
				org:           org,
			})
		}
	}

	if len(matches) == 0 {
		engineGroundingTotal.WithLabelValues("unmatched").Inc()
		return groundingEmptyMessage
	}

	engineGroundingTotal.WithLabelValues("matched").Inc()
	e.logger.Debug("grounding matches found",
		slog.Int("batch_size", len(batch)),
		slog.Int("matches", len(matches)),
	)
	return renderGroundingFacts(matches)
}

// renderGroundingFacts renders the known-facts block for matched items.
//
// Description:
//
//	One block per match with the organization's structured fields. The
//	closing instruction tells the model to use the facts silently — the
//	dashboard must not read like it ran a database lookup.
func renderGroundingFacts(matches []groundingMatch) string {
	var sb strings.Builder
	sb.WriteString("Known facts from our reference dataset:\n")
	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("\n%s — %s:\n", itemHeader(m.itemIndex, m.itemID), m.org.Name))
		writeFact(&sb, "Type", m.org.Type)
		vendors := make([]string, 0, len(m.org.VendorFields))
		for vendor := range m.org.VendorFields {
			vendors = append(vendors, vendor)
		}
		sort.Strings(vendors)
		for _, vendor := range vendors {
			writeFact(&sb, "Vendor ("+vendor+")", m.org.VendorFields[vendor])
		}
		writeFact(&sb, "Revenue", m.org.Revenue)
		if m.org.BedCount > 0 {
			writeFact(&sb, "Bed count", fmt.Sprintf("%d", m.org.BedCount))
		}
		if m.org.HospitalCount > 0 {
			writeFact(&sb, "Hospital count", fmt.Sprintf("%d", m.org.HospitalCount))
		}
		writeFact(&sb, "Website", m.org.Website)
		writeFact(&sb, "Location", m.org.Location)
	}
	sb.WriteString("\nUse these facts when answering the matching items. ")
	sb.WriteString("Do not mention that this context was looked up or that a reference dataset exists.")
	return sb.String()
}

func writeFact(sb *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("  %s: %s\n", label, value))
}
