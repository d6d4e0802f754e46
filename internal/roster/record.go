// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import (
	"sort"
	"strings"
)

// cardSeparator joins the free-text fields of a record into its card text.
const cardSeparator = " | "

// Record is the canonical form of one person across all ingested sheets.
// Name is the sole identity; records with the same name merge.
type Record struct {
	Name       string   `json:"name"`
	Program    string   `json:"program"`
	Group      string   `json:"group"`
	Background string   `json:"background"`
	Topic      string   `json:"topic"`
	Methods    []string `json:"methods"`
	Software   []string `json:"software"`
	Offer      []string `json:"offer"`
	Seek       []string `json:"seek"`
	Validated  bool     `json:"validated"`
	Tags       []string `json:"tags"`

	// ExpertiseGroups preserves the staff roster's skill grouping for
	// network visualization. Empty for records from the main roster.
	ExpertiseGroups map[string][]string `json:"expertise_groups,omitempty"`
}

// CardText aggregates the record's free-text fields into the string used as
// embedding input. Falls back to the name so every record embeds to something.
func (r Record) CardText() string {
	parts := make([]string, 0, 2+len(r.Methods)+len(r.Software)+len(r.Offer)+len(r.Seek))
	for _, p := range [][]string{{r.Background, r.Topic}, r.Methods, r.Software, r.Offer, r.Seek} {
		for _, s := range p {
			if s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return r.Name
	}
	return strings.Join(parts, cardSeparator)
}

// Merge folds other into r: scalar fields fill only when r's value is empty
// (first non-empty wins, in ingestion order), list fields union with duplicates
// removed and the result sorted. Case is not folded before deduplication, so
// variants differing only in case both survive.
func (r *Record) Merge(other Record) {
	if r.Program == "" {
		r.Program = other.Program
	}
	if r.Group == "" {
		r.Group = other.Group
	}
	if r.Background == "" {
		r.Background = other.Background
	}
	if r.Topic == "" {
		r.Topic = other.Topic
	}
	r.Methods = unionSorted(r.Methods, other.Methods)
	r.Software = unionSorted(r.Software, other.Software)
	r.Offer = unionSorted(r.Offer, other.Offer)
	r.Seek = unionSorted(r.Seek, other.Seek)
	r.Validated = r.Validated || other.Validated
	if len(other.Tags) > 0 {
		r.Tags = unionSorted(r.Tags, other.Tags)
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r Record) Clone() Record {
	out := r
	out.Methods = append([]string(nil), r.Methods...)
	out.Software = append([]string(nil), r.Software...)
	out.Offer = append([]string(nil), r.Offer...)
	out.Seek = append([]string(nil), r.Seek...)
	out.Tags = append([]string(nil), r.Tags...)
	if r.ExpertiseGroups != nil {
		out.ExpertiseGroups = make(map[string][]string, len(r.ExpertiseGroups))
		for g, skills := range r.ExpertiseGroups {
			out.ExpertiseGroups[g] = append([]string(nil), skills...)
		}
	}
	return out
}

func unionSorted(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// MergeByName deduplicates records by name, preserving the order in which
// each name first appeared. Rows without a name have already been dropped.
func MergeByName(records []Record) []Record {
	byName := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if idx, ok := byName[r.Name]; ok {
			out[idx].Merge(r)
			continue
		}
		byName[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}
