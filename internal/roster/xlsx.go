// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import (
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// XLSXSource reads every sheet of an .xlsx workbook.
type XLSXSource struct {
	path string
}

// NewXLSXSource returns a Source over the workbook at path. The file is
// opened on each Sheets call so re-ingestion picks up edits.
func NewXLSXSource(path string) *XLSXSource {
	return &XLSXSource{path: path}
}

// Sheets reads all sheets of the workbook. A sheet that fails to parse is
// skipped with a warning; a missing or unreadable workbook is a hard error.
func (x *XLSXSource) Sheets() ([]Sheet, error) {
	if _, err := os.Stat(x.path); os.IsNotExist(err) {
		return nil, cohorterr.Errorf(cohorterr.CodeRosterSourceNotFound, "spreadsheet not found at %s", x.path)
	}

	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeRosterSourceReadFailure, "opening spreadsheet %s", x.path)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.Warn("skipping malformed sheet", "sheet", name, "error", err)
			continue
		}
		if sheet, ok := tabulate(name, rows); ok {
			sheets = append(sheets, sheet)
		}
	}
	return sheets, nil
}

// tabulate converts raw cell rows into a header-keyed Sheet. The first row is
// the header; rows shorter than the header are padded with empty cells.
func tabulate(name string, rows [][]string) (Sheet, bool) {
	if len(rows) == 0 {
		return Sheet{}, false
	}

	header := make([]string, 0, len(rows[0]))
	for _, h := range rows[0] {
		header = append(header, strings.TrimSpace(h))
	}

	sheet := Sheet{Name: name, Columns: header}
	for _, raw := range rows[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(raw) {
				row[col] = raw[i]
			} else {
				row[col] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, true
}
