package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactLookup() Relation {
	return Build(
		[]string{"Student ID", "EM", "Phone Number"},
		[][]string{
			{"S1", "Maya", "111"},
			{"S1", "Noor", "222"},
			{"S3", "Omar", "333"},
		},
	)
}

func TestLeftJoinRowCountMatchesBase(t *testing.T) {
	base := Build(
		[]string{"Student ID", "Hr"},
		[][]string{{"S1", "1"}, {"S2", "2"}, {"S1", "3"}},
		"Hr",
	)

	tests := []struct {
		name   string
		lookup Relation
	}{
		{"all keys match", contactLookup()},
		{"no keys match", Build([]string{"Student ID", "EM", "Phone Number"}, [][]string{{"S9", "x", "y"}})},
		{"mixed", Build([]string{"Student ID", "EM", "Phone Number"}, [][]string{{"S2", "Lena", "444"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined := LeftJoin(base, tt.lookup, "Student ID", "EM", "Phone Number")
			assert.Equal(t, base.Len(), joined.Len())
		})
	}
}

func TestLeftJoinFirstMatchWins(t *testing.T) {
	base := Build([]string{"Student ID"}, [][]string{{"S1"}})

	joined := LeftJoin(base, contactLookup(), "Student ID", "EM", "Phone Number")

	require.Equal(t, 1, joined.Len())
	assert.Equal(t, "Maya", joined.Value(0, "EM").String())
	assert.Equal(t, "111", joined.Value(0, "Phone Number").String())
}

func TestLeftJoinUnmatchedRowsGetNulls(t *testing.T) {
	base := Build([]string{"Student ID", "Student"}, [][]string{{"S2", "bob"}})

	joined := LeftJoin(base, contactLookup(), "Student ID", "EM", "Phone Number")

	require.Equal(t, 1, joined.Len())
	assert.Equal(t, []string{"Student ID", "Student", "EM", "Phone Number"}, joined.Columns())
	assert.True(t, joined.Value(0, "EM").IsNull())
	assert.True(t, joined.Value(0, "Phone Number").IsNull())
	assert.Equal(t, "bob", joined.Value(0, "Student").String())
}

func TestLeftJoinEmptySides(t *testing.T) {
	base := Build([]string{"Student ID"}, [][]string{{"S1"}})
	empty := Relation{}

	assert.True(t, LeftJoin(empty, contactLookup(), "Student ID", "EM").IsEmpty())
	assert.True(t, LeftJoin(base, empty, "Student ID", "EM").IsEmpty())

	noRows := Build([]string{"Student ID", "EM"}, nil)
	assert.True(t, LeftJoin(base, noRows, "Student ID", "EM").IsEmpty())
}

func TestLeftJoinMissingColumnsReturnsBase(t *testing.T) {
	base := Build([]string{"Student ID"}, [][]string{{"S1"}})
	lookup := Build([]string{"Other"}, [][]string{{"x"}})

	joined := LeftJoin(base, lookup, "Student ID", "EM")

	assert.Equal(t, base.Columns(), joined.Columns())
	assert.Equal(t, base.Len(), joined.Len())
	assert.Equal(t, "S1", joined.Value(0, "Student ID").String())
}

func TestLeftJoinSkipsColumnsAlreadyInBase(t *testing.T) {
	base := Build([]string{"Student ID", "EM"}, [][]string{{"S1", "kept"}})

	joined := LeftJoin(base, contactLookup(), "Student ID", "EM", "Phone Number")

	assert.Equal(t, []string{"Student ID", "EM", "Phone Number"}, joined.Columns())
	assert.Equal(t, "kept", joined.Value(0, "EM").String())
	assert.Equal(t, "111", joined.Value(0, "Phone Number").String())
}
