// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import "strings"

// MaxMatchesPerName caps accepted matches for one candidate name. Substring
// containment over a large directory can fan out ("Health" matches half the
// dataset); two matches bound the grounding block's prompt size.
const MaxMatchesPerName = 2

// MatchName fuzzy-matches a candidate name against the directory.
//
// Description:
//
//	Two passes. First, exact case-insensitive equality; an exact hit wins
//	outright and is returned alone. Second, bidirectional substring
//	containment ("Mercy" matches "Mercy Health System" and vice versa),
//	accepting at most MaxMatchesPerName organizations in dataset order.
//
// Inputs:
//   - orgs: The reference dataset. May be empty.
//   - candidate: The extracted name. Trimmed before matching.
//
// Outputs:
//   - []Organization: Matched organizations, at most MaxMatchesPerName.
//     Empty slice when the candidate is blank or nothing matches.
//
// Thread Safety: Safe for concurrent use (pure function).
func MatchName(orgs []Organization, candidate string) []Organization {
	name := strings.ToLower(strings.TrimSpace(candidate))
	if name == "" {
		return nil
	}

	for _, org := range orgs {
		if strings.ToLower(strings.TrimSpace(org.Name)) == name {
			return []Organization{org}
		}
	}

	var matches []Organization
	for _, org := range orgs {
		orgName := strings.ToLower(strings.TrimSpace(org.Name))
		if orgName == "" {
			continue
		}
		if strings.Contains(orgName, name) || strings.Contains(name, orgName) {
			matches = append(matches, org)
			if len(matches) == MaxMatchesPerName {
				break
			}
		}
	}
	return matches
}
