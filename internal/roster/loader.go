// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import (
	"strings"
)

// Loader normalizes the sheets of one spreadsheet into merged records.
type Loader struct {
	source  Source
	tag     string
	columns func() map[string]string // live column-map overrides, field -> header
}

// NewLoader creates a Loader. tag, when non-empty, is attached to every
// record's tag set. columnOverrides is consulted on every load so persisted
// column-map updates apply to the next ingestion without a restart; nil means
// no overrides.
func NewLoader(source Source, tag string, columnOverrides func() map[string]string) *Loader {
	if columnOverrides == nil {
		columnOverrides = func() map[string]string { return nil }
	}
	return &Loader{source: source, tag: tag, columns: columnOverrides}
}

// Load reads all sheets, maps each row onto the canonical schema, drops rows
// without a resolvable name, and merges duplicates by name.
func (l *Loader) Load() ([]Record, error) {
	sheets, err := l.source.Sheets()
	if err != nil {
		return nil, err
	}

	overrides := l.columns()
	var records []Record
	for _, sheet := range sheets {
		cmap := InferColumns(sheet.Columns, overrides)
		for _, row := range sheet.Rows {
			rec := normalizeRow(row, cmap)
			if rec.Name == "" {
				continue
			}
			if l.tag != "" {
				rec.Tags = unionSorted(rec.Tags, []string{l.tag})
			}
			records = append(records, rec)
		}
	}
	return MergeByName(records), nil
}

// Columns reports each sheet's headers, for the column-mapping admin surface.
func (l *Loader) Columns() (map[string][]string, error) {
	sheets, err := l.source.Sheets()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(sheets))
	for _, sheet := range sheets {
		out[sheet.Name] = sheet.Columns
	}
	return out, nil
}

func normalizeRow(row map[string]string, cmap ColumnMap) Record {
	cell := func(field LogicalField) string {
		col := cmap[field]
		if col == "" {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	return Record{
		Name:       cell(FieldName),
		Program:    cell(FieldProgram),
		Group:      cell(FieldGroup),
		Background: cell(FieldBackground),
		Topic:      cell(FieldTopic),
		Methods:    SplitCell(cell(FieldMethods)),
		Software:   SplitCell(cell(FieldSoftware)),
		Offer:      SplitCell(cell(FieldOffer)),
		Seek:       SplitCell(cell(FieldSeek)),
	}
}
