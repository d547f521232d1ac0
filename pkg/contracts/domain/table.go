// Package domain contains the business types shared between the portal
// services and their API surfaces.
package domain

// Table is a column-ordered result set ready for JSON serialization.
// Cells are nil, string or float64, mirroring how worksheet data is typed
// after ingestion: text stays text and hour columns become numbers.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of data rows in the table
func (t Table) RowCount() int {
	return len(t.Rows)
}

// IsEmpty reports whether the table has no data rows
func (t Table) IsEmpty() bool {
	return len(t.Rows) == 0
}
