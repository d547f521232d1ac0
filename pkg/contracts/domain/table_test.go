package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRowCount(t *testing.T) {
	table := Table{
		Columns: []string{"Class", "Hr"},
		Rows: [][]any{
			{"Algebra", 1.5},
			{"Geometry", 2.0},
		},
	}

	assert.Equal(t, 2, table.RowCount())
	assert.False(t, table.IsEmpty())
	assert.True(t, Table{Columns: []string{"Class"}}.IsEmpty())
}

func TestTableJSON(t *testing.T) {
	table := Table{
		Columns: []string{"Student", "Hr", "EM"},
		Rows: [][]any{
			{"Asha Rao", 1.5, nil},
		},
	}

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columns": ["Student", "Hr", "EM"],
		"rows": [["Asha Rao", 1.5, null]]
	}`, string(data))
}

func TestLogViewJSON(t *testing.T) {
	view := LogView{
		Log:        Table{Columns: []string{"Date"}, Rows: [][]any{{"2025-05-02"}, {"2025-05-02"}}},
		Duplicates: []int{0, 1},
	}

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duplicates":[0,1]`)
}
