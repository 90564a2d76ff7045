package model

// Table is a tabular query result: named columns in order and rows as
// ordered value tuples. Values are int64, float64, string or nil.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: [][]any{}}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i in the named column, or nil if either is
// out of range.
func (t *Table) Value(i int, column string) any {
	j := t.ColumnIndex(column)
	if j < 0 || i < 0 || i >= t.Len() || j >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][j]
}

// Records returns each row as a column-name keyed map.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(row) {
				rec[c] = row[j]
			}
		}
		out = append(out, rec)
	}
	return out
}
