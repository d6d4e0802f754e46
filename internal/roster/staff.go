// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import (
	"log/slog"
	"strings"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// Staff spreadsheets use a pair-row layout: one row per (person, expertise)
// rather than one row per person. Column names are fixed exports from the HR
// system, so exact header matches are tried before substring fallbacks.
const (
	staffPersonColumn     = "person_name"
	staffExpertiseColumn  = "expertise_name"
	staffGroupColumn      = "expertise_group"
	staffCostCenterColumn = "person_main_cost_center"

	defaultExpertiseGroup = "General"
)

// LoadStaffRecords aggregates pair rows from the first sheet of src into one
// record per person. All expertise values become the person's offer list; the
// cost center, when present, becomes the group.
func LoadStaffRecords(src Source) ([]Record, error) {
	sheets, err := src.Sheets()
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	personCol := findStaffColumn(sheet.Columns, staffPersonColumn, "person", "name")
	expertiseCol := findStaffColumn(sheet.Columns, staffExpertiseColumn, "expertise", "name")
	groupCol := findStaffColumn(sheet.Columns, staffGroupColumn, "expertise", "group")
	costCenterCol := findStaffColumn(sheet.Columns, staffCostCenterColumn, "cost", "center")

	if personCol == "" || expertiseCol == "" {
		return nil, cohorterr.New(cohorterr.CodeRosterSheetInvalid,
			"staff sheet is missing person or expertise columns",
			cohorterr.FieldSheet(sheet.Name),
			cohorterr.Field("columns", sheet.Columns))
	}

	type person struct {
		groups     map[string][]string
		costCenter string
	}
	order := make([]string, 0)
	people := make(map[string]*person)

	for _, row := range sheet.Rows {
		name := cleanStaffValue(row[personCol])
		skill := cleanStaffValue(row[expertiseCol])
		if name == "" || skill == "" {
			continue
		}

		group := defaultExpertiseGroup
		if groupCol != "" {
			if g := cleanStaffValue(row[groupCol]); g != "" {
				group = g
			}
		}

		p, ok := people[name]
		if !ok {
			p = &person{groups: make(map[string][]string)}
			people[name] = p
			order = append(order, name)
		}
		if !containsString(p.groups[group], skill) {
			p.groups[group] = append(p.groups[group], skill)
		}

		if p.costCenter == "" && costCenterCol != "" {
			p.costCenter = cleanStaffValue(row[costCenterCol])
		}
	}

	records := make([]Record, 0, len(people))
	for _, name := range order {
		p := people[name]
		var skills []string
		for _, groupSkills := range p.groups {
			skills = append(skills, groupSkills...)
		}
		skills = unionSorted(skills, nil)

		records = append(records, Record{
			Name:            name,
			Group:           p.costCenter,
			Offer:           skills,
			ExpertiseGroups: p.groups,
		})
	}

	slog.Info("loaded staff records", "people", len(records), "sheet", sheet.Name)
	return records, nil
}

// findStaffColumn returns the header equal to exact (case-insensitive), or
// failing that the first header containing both substrings.
func findStaffColumn(headers []string, exact string, containsA, containsB string) string {
	for _, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), exact) {
			return h
		}
	}
	for _, h := range headers {
		lower := strings.ToLower(h)
		if strings.Contains(lower, containsA) && strings.Contains(lower, containsB) {
			return h
		}
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// cleanStaffValue trims a cell and drops spreadsheet NA artifacts.
func cleanStaffValue(v string) string {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "nan", "none":
		return ""
	}
	return s
}
