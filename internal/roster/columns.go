// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import "strings"

// LogicalField names one slot of the canonical record schema.
type LogicalField string

const (
	FieldName       LogicalField = "name"
	FieldProgram    LogicalField = "program"
	FieldGroup      LogicalField = "group"
	FieldBackground LogicalField = "background"
	FieldTopic      LogicalField = "topic"
	FieldMethods    LogicalField = "methods"
	FieldSoftware   LogicalField = "software"
	FieldOffer      LogicalField = "offer"
	FieldSeek       LogicalField = "seek"
)

// LogicalFields lists every field in schema order.
var LogicalFields = []LogicalField{
	FieldName, FieldProgram, FieldGroup, FieldBackground, FieldTopic,
	FieldMethods, FieldSoftware, FieldOffer, FieldSeek,
}

// ListFields are the fields whose cells may hold multiple values.
var ListFields = map[LogicalField]bool{
	FieldMethods:  true,
	FieldSoftware: true,
	FieldOffer:    true,
	FieldSeek:     true,
}

// inferenceRule maps a logical field to header substrings tried in priority
// order. Kept as data so the matching behavior is testable in isolation.
type inferenceRule struct {
	Field      LogicalField
	Candidates []string
}

var inferenceRules = []inferenceRule{
	{FieldName, []string{"name", "full name", "person"}},
	{FieldProgram, []string{"program", "programme"}},
	{FieldGroup, []string{"group", "unit", "team", "department"}},
	{FieldBackground, []string{"background", "bio", "about", "discipline", "degree", "education", "field", "training"}},
	{FieldTopic, []string{"topic", "research topic", "research focus", "interests", "expertise", "keywords", "domain", "area"}},
	{FieldMethods, []string{"method", "methods", "technique", "approach", "methodology", "methods used"}},
	{FieldSoftware, []string{"software", "tool", "tools", "programming", "languages"}},
	{FieldOffer, []string{"offer", "can offer", "can you offer", "i can help", "can help", "can offer help", "skills offered", "expertise offered"}},
	{FieldSeek, []string{"seek", "wants help", "want help", "need help", "looking for", "skills sought", "mentorship needs"}},
}

// ColumnMap resolves each logical field to an actual column header, or "" when
// no column matched.
type ColumnMap map[LogicalField]string

// InferColumns maps sheet headers onto the logical schema. For each field the
// candidate substrings are tried in order against the lowercased headers; the
// first header containing a candidate wins. An override naming an existing
// header takes precedence over inference; overrides naming absent columns are
// ignored.
func InferColumns(headers []string, overrides map[string]string) ColumnMap {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(h)
	}

	cmap := make(ColumnMap, len(inferenceRules))
	for _, rule := range inferenceRules {
		cmap[rule.Field] = firstMatch(headers, lowered, rule.Candidates)
	}

	for field, col := range overrides {
		if col == "" {
			continue
		}
		for _, h := range headers {
			if h == col {
				cmap[LogicalField(field)] = col
				break
			}
		}
	}
	return cmap
}

func firstMatch(headers, lowered []string, candidates []string) string {
	for _, cand := range candidates {
		for i, h := range lowered {
			if strings.Contains(h, cand) {
				return headers[i]
			}
		}
	}
	return ""
}
