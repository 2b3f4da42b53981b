package formats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ajitpratap0/runvars/pkg/columnar"
)

func writeDelimited(w io.Writer, t *columnar.Table, comma rune, missing string) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	cols := t.Columns()
	record := make([]string, len(cols))
	for r := 0; r < t.NumRows(); r++ {
		for i, col := range cols {
			s, ok := cellText(col.Get(r))
			if !ok {
				s = missing
			}
			record[i] = s
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// readDelimited infers column types from the text: a column whose present
// cells all parse as numbers and print back unchanged is float, one with no
// such cells is string, anything else is mixed.
func readDelimited(r io.Reader, comma rune, missing string) (*columnar.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return columnar.NewTable()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	cols := make([]columnar.Column, len(header))
	for i, name := range header {
		numeric, text := 0, 0
		for _, row := range rows {
			cell := row[i]
			if cell == missing {
				continue
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil && formatFloat(f) == cell {
				numeric++
			} else {
				text++
			}
		}

		var col columnar.Column
		switch {
		case text == 0 && numeric > 0:
			col = columnar.NewFloatColumn(name, len(rows))
		case numeric == 0:
			col = columnar.NewStringColumn(name, len(rows))
		default:
			col = columnar.NewMixedColumn(name, len(rows))
		}
		for _, row := range rows {
			cell := row[i]
			var v interface{}
			if cell != missing {
				if col.Type() == columnar.ColumnTypeString {
					v = cell
				} else {
					v = parseMixed(cell)
				}
			}
			if err := col.Append(v); err != nil {
				return nil, err
			}
		}
		cols[i] = col
	}
	return columnar.NewTable(cols...)
}
