// Package dataload reads the numeric data section of a measurement CSV,
// starting after the header offset reported by the header parser, into an
// in-memory column-oriented table.
package dataload

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/joaquim-mph/optostage/internal/xerrors"
)

// Table is a column-oriented data table: each column holds one value per
// row, typed as string, float64, or nil (empty cell).
type Table struct {
	Columns []string
	Data    map[string][]any
	NumRows int
}

// Load reads r (already positioned, or re-read from the top and skipped to
// dataStartLine) into a Table. The first data-start line is the CSV column
// header row; every line after it is a numeric row. Empty cells become nil;
// anything not parseable as a float is kept as a trimmed string so the
// column renamer and enricher still see the raw observed value.
func Load(path string, r io.Reader, dataStartLine int) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var header []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return Table{}, xerrors.New(xerrors.EmptyDataTable, "dataload.Load", path, nil)
		}
		if err != nil {
			return Table{}, xerrors.New(xerrors.IOFailure, "dataload.Load", path, err)
		}
		// FieldPos is 1-based and counts every physical line, including the
		// blank lines csv.Reader skips, so it lines up with dataStartLine.
		if line, _ := reader.FieldPos(0); line-1 >= dataStartLine {
			header = trimAll(record)
			break
		}
	}

	table := Table{
		Columns: header,
		Data:    make(map[string][]any, len(header)),
	}
	for _, col := range header {
		table.Data[col] = nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, xerrors.New(xerrors.IOFailure, "dataload.Load", path, err)
		}

		for i, col := range header {
			var cell string
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			table.Data[col] = append(table.Data[col], parseCell(cell))
		}
		table.NumRows++
	}

	if table.NumRows == 0 {
		return Table{}, xerrors.New(xerrors.EmptyDataTable, "dataload.Load", path, nil)
	}

	return table, nil
}

func parseCell(cell string) any {
	if cell == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
