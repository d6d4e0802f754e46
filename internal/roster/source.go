// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

// Sheet is one named table of a spreadsheet, already reduced to strings.
// Rows are keyed by the trimmed column headers.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []map[string]string
}

// Source yields the sheets of a spreadsheet. A missing spreadsheet is a hard
// error; an individually malformed sheet is skipped by the implementation
// with a warning, so Sheets never returns a partial-failure error.
type Source interface {
	Sheets() ([]Sheet, error)
}
