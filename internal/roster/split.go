// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import "strings"

// listSeparators are tried in order; the first one present in the cell decides
// the split. Later separators are ignored even if also present, so
// "a, b; c" splits on "; " into ["a, b", "c"].
var listSeparators = []string{"\n", "; ", ",", "|", "•", "·", " / ", " – ", " — "}

// partCutset strips leading/trailing whitespace and bullet or dash characters
// left behind by hand-formatted spreadsheet cells.
const partCutset = " \t-•·"

// SplitCell splits a multi-value spreadsheet cell into trimmed parts.
// A cell with no known separator is a single value; empty parts are dropped.
func SplitCell(cell string) []string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	for _, sep := range listSeparators {
		if !strings.Contains(s, sep) {
			continue
		}
		raw := strings.Split(s, sep)
		parts := make([]string, 0, len(raw))
		for _, p := range raw {
			p = strings.Trim(p, partCutset)
			if p != "" {
				parts = append(parts, p)
			}
		}
		return parts
	}
	return []string{s}
}
