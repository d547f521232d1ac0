package relation

import "sort"

// Relation is an ordered set of uniquely named columns plus zero or more
// rows of cells. The zero value is the empty relation. Relations are
// immutable: every operation returns a new one and row storage may be
// shared between them, so callers must not mutate cells in place.
type Relation struct {
	cols  []string
	index map[string]int
	rows  [][]Value
}

// New assembles a relation from column names and rows. Column names must
// already be unique (Build takes care of that for raw worksheet input).
// Rows are padded with nulls or truncated to the column count.
func New(cols []string, rows [][]Value) Relation {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	fitted := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) == len(cols) {
			fitted[i] = row
			continue
		}
		cells := make([]Value, len(cols))
		copy(cells, row)
		for j := len(row); j < len(cols); j++ {
			cells[j] = NullValue()
		}
		fitted[i] = cells
	}
	return Relation{cols: cols, index: index, rows: fitted}
}

// Columns returns a copy of the column names in order.
func (r Relation) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of rows.
func (r Relation) Len() int {
	return len(r.rows)
}

// IsEmpty reports whether the relation has no rows.
func (r Relation) IsEmpty() bool {
	return len(r.rows) == 0
}

// HasColumn reports whether the named column exists.
func (r Relation) HasColumn(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Value returns the cell at row i in the named column, or null when the
// column does not exist.
func (r Relation) Value(i int, col string) Value {
	j, ok := r.index[col]
	if !ok {
		return NullValue()
	}
	return r.rows[i][j]
}

// Row returns a read-only view of row i.
func (r Relation) Row(i int) Row {
	return Row{index: r.index, cells: r.rows[i]}
}

// Select returns a relation holding the rows at the given indices, in the
// given order. Row storage is shared with the receiver.
func (r Relation) Select(indices []int) Relation {
	rows := make([][]Value, len(indices))
	for i, idx := range indices {
		rows[i] = r.rows[idx]
	}
	return Relation{cols: r.cols, index: r.index, rows: rows}
}

// Project returns a relation keeping only the listed columns that exist,
// in the listed order. Names with no matching column are skipped, so a
// view can name optional columns without failing.
func (r Relation) Project(cols ...string) Relation {
	keep := make([]int, 0, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if j, ok := r.index[c]; ok {
			keep = append(keep, j)
			names = append(names, c)
		}
	}
	rows := make([][]Value, len(r.rows))
	for i, row := range r.rows {
		cells := make([]Value, len(keep))
		for k, j := range keep {
			cells[k] = row[j]
		}
		rows[i] = cells
	}
	return New(names, rows)
}

// Rename returns a relation with the given columns renamed. Names absent
// from the relation are ignored; the caller is responsible for keeping
// the result free of collisions.
func (r Relation) Rename(renames map[string]string) Relation {
	cols := make([]string, len(r.cols))
	copy(cols, r.cols)
	for i, c := range cols {
		if to, ok := renames[c]; ok {
			cols[i] = to
		}
	}
	return Relation{cols: cols, index: buildIndex(cols), rows: r.rows}
}

// SortBy returns a relation with rows stably ordered by the named
// columns, nulls first. Missing columns are ignored.
func (r Relation) SortBy(cols ...string) Relation {
	keys := make([]int, 0, len(cols))
	for _, c := range cols {
		if j, ok := r.index[c]; ok {
			keys = append(keys, j)
		}
	}
	rows := make([][]Value, len(r.rows))
	copy(rows, r.rows)
	sort.SliceStable(rows, func(a, b int) bool {
		for _, j := range keys {
			if c := rows[a][j].Compare(rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return Relation{cols: r.cols, index: r.index, rows: rows}
}

// Distinct returns a relation keeping the first occurrence of each fully
// identical row.
func (r Relation) Distinct() Relation {
	seen := make(map[string]bool, len(r.rows))
	rows := make([][]Value, 0, len(r.rows))
	for _, row := range r.rows {
		k := rowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, row)
	}
	return Relation{cols: r.cols, index: r.index, rows: rows}
}

func buildIndex(cols []string) map[string]int {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return index
}

// Row is a read-only view of one relation row.
type Row struct {
	index map[string]int
	cells []Value
}

// Get returns the cell in the named column, or null when the column does
// not exist.
func (r Row) Get(col string) Value {
	j, ok := r.index[col]
	if !ok || j >= len(r.cells) {
		return NullValue()
	}
	return r.cells[j]
}

// At returns the cell at column position i, or null when out of range.
func (r Row) At(i int) Value {
	if i < 0 || i >= len(r.cells) {
		return NullValue()
	}
	return r.cells[i]
}

// Len returns the number of cells in the row.
func (r Row) Len() int {
	return len(r.cells)
}
