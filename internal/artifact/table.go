package artifact

import (
	"fmt"
	"strings"
)

// ColumnType is the declared cell type of one table column.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnInt
	ColumnLong
	ColumnFloat
	ColumnDouble
)

// columnTypeFromString maps the document's column type names. Unknown names
// fall back to string, the widest representation.
func columnTypeFromString(s string) ColumnType {
	switch strings.ToLower(s) {
	case "int":
		return ColumnInt
	case "long":
		return ColumnLong
	case "float":
		return ColumnFloat
	case "double":
		return ColumnDouble
	default:
		return ColumnString
	}
}

// Column describes one typed table column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a row-major tabular section extracted from the document: scoring
// history, feature importances. Cells are nullable; a nil cell is a null in
// the document. Int/Long cells hold int64, Float/Double hold float64, String
// holds string.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// NumRows reports the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// Cell returns the value at (row, column name). ok is false for unknown
// columns, out-of-range rows and null cells.
func (t *Table) Cell(row int, column string) (any, bool) {
	if row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	for i, c := range t.Columns {
		if c.Name == column {
			v := t.Rows[row][i]
			return v, v != nil
		}
	}
	return nil, false
}

// parseTable converts one raw table section. The document form is
//
//	{"name": ..., "columns": [{"name":..., "type":...}, ...], "data": [[row]...]}
//
// Rows shorter than the column list are padded with nulls; cells that cannot
// coerce to the declared column type fail the parse.
func parseTable(section any) (*Table, error) {
	raw, ok := section.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("table section is not an object")
	}

	t := &Table{}
	if name, ok := raw["name"].(string); ok {
		t.Name = name
	}

	rawCols, ok := raw["columns"].([]any)
	if !ok {
		return nil, fmt.Errorf("table %q: missing columns", t.Name)
	}
	for i, rc := range rawCols {
		cm, ok := rc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("table %q: column %d is not an object", t.Name, i)
		}
		name, _ := cm["name"].(string)
		typ, _ := cm["type"].(string)
		t.Columns = append(t.Columns, Column{Name: name, Type: columnTypeFromString(typ)})
	}

	rawRows, ok := raw["data"].([]any)
	if !ok {
		return nil, fmt.Errorf("table %q: missing data", t.Name)
	}
	for ri, rr := range rawRows {
		cells, ok := rr.([]any)
		if !ok {
			return nil, fmt.Errorf("table %q: row %d is not an array", t.Name, ri)
		}
		row := make([]any, len(t.Columns))
		for ci := range t.Columns {
			if ci >= len(cells) {
				continue
			}
			cell, err := coerceCell(cells[ci], t.Columns[ci].Type)
			if err != nil {
				return nil, fmt.Errorf("table %q: row %d col %q: %w", t.Name, ri, t.Columns[ci].Name, err)
			}
			row[ci] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// coerceCell converts one JSON cell into the column's declared type. Null
// stays nil.
func coerceCell(v any, typ ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case ColumnInt, ColumnLong:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return int64(f), nil
	case ColumnFloat, ColumnDouble:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return f, nil
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case float64:
			return formatNumber(s), nil
		case bool:
			return fmt.Sprintf("%t", s), nil
		default:
			return nil, fmt.Errorf("expected string, got %T", v)
		}
	}
}

// dropBlankColumns removes columns with empty or blank names, together with
// their cells. The scoring-history section carries one such unnamed column.
func dropBlankColumns(t *Table) {
	keep := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) != "" {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.Columns) {
		return
	}
	cols := make([]Column, len(keep))
	for j, i := range keep {
		cols[j] = t.Columns[i]
	}
	for ri, row := range t.Rows {
		next := make([]any, len(keep))
		for j, i := range keep {
			next[j] = row[i]
		}
		t.Rows[ri] = next
	}
	t.Columns = cols
}
