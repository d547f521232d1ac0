package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoursLog(rows [][]string) Relation {
	return Build([]string{"Class", "Syllabus", "Hr"}, rows, "Hr")
}

func TestSumByGroupsInFirstEncounterOrder(t *testing.T) {
	rel := hoursLog([][]string{
		{"X", "CBSE", "1"},
		{"IX", "CBSE", "2"},
		{"X", "CBSE", "0.5"},
		{"X", "IGCSE", "1"},
	})

	got := SumBy(rel, []string{"Class", "Syllabus"}, "Hr")

	require.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"Class", "Syllabus", "Hr"}, got.Columns())
	assert.Equal(t, "X", got.Value(0, "Class").String())
	assert.Equal(t, 1.5, got.Value(0, "Hr").Float())
	assert.Equal(t, "IX", got.Value(1, "Class").String())
	assert.Equal(t, 2.0, got.Value(1, "Hr").Float())
	assert.Equal(t, "IGCSE", got.Value(2, "Syllabus").String())
	assert.Equal(t, 1.0, got.Value(2, "Hr").Float())
}

func TestSumByIsIdempotentOverGroupedOutput(t *testing.T) {
	rel := hoursLog([][]string{
		{"X", "CBSE", "1"},
		{"X", "CBSE", "2"},
		{"IX", "CBSE", "4"},
	})

	once := SumBy(rel, []string{"Class", "Syllabus"}, "Hr")
	twice := SumBy(once, []string{"Class", "Syllabus"}, "Hr")

	require.Equal(t, once.Len(), twice.Len())
	for i := 0; i < once.Len(); i++ {
		assert.Equal(t, once.Value(i, "Class"), twice.Value(i, "Class"))
		assert.Equal(t, once.Value(i, "Hr").Float(), twice.Value(i, "Hr").Float())
	}
}

func TestSumByTotalsAreOrderInvariant(t *testing.T) {
	rows := [][]string{
		{"X", "CBSE", "1"},
		{"IX", "CBSE", "2"},
		{"X", "CBSE", "0.5"},
	}
	reversed := [][]string{rows[2], rows[1], rows[0]}

	a := SumBy(hoursLog(rows), []string{"Class"}, "Hr")
	b := SumBy(hoursLog(reversed), []string{"Class"}, "Hr")

	totals := func(rel Relation) map[string]float64 {
		m := make(map[string]float64)
		for i := 0; i < rel.Len(); i++ {
			m[rel.Value(i, "Class").String()] = rel.Value(i, "Hr").Float()
		}
		return m
	}
	assert.Equal(t, totals(a), totals(b))
}

func TestSumByEmptyInput(t *testing.T) {
	got := SumBy(Relation{}, []string{"Class"}, "Hr")

	assert.True(t, got.IsEmpty())
	assert.Equal(t, []string{"Class", "Hr"}, got.Columns())
}

func TestSumByMissingGroupColumn(t *testing.T) {
	rel := hoursLog([][]string{{"X", "CBSE", "1"}, {"IX", "CBSE", "2"}})

	got := SumBy(rel, []string{"Nope"}, "Hr")

	// Every row lands in the single null group.
	require.Equal(t, 1, got.Len())
	assert.True(t, got.Value(0, "Nope").IsNull())
	assert.Equal(t, 3.0, got.Value(0, "Hr").Float())
}

func TestTotal(t *testing.T) {
	rel := hoursLog([][]string{{"X", "CBSE", "1"}, {"X", "CBSE", "2.5"}})

	assert.Equal(t, 3.5, Total(rel, "Hr"))
	assert.Equal(t, 0.0, Total(rel, "Missing"))
	assert.Equal(t, 0.0, Total(Relation{}, "Hr"))
}

func TestDetectDuplicatesMarksAllOccurrences(t *testing.T) {
	rel := Build(
		[]string{"Date", "Student ID"},
		[][]string{
			{"1", "1"},
			{"1", "1"},
			{"1", "2"},
		},
	)

	got := DetectDuplicates(rel, "Date", "Student ID")

	assert.Equal(t, []int{0, 1}, got)
}

func TestDetectDuplicatesNoneFound(t *testing.T) {
	rel := Build(
		[]string{"Date", "Student ID"},
		[][]string{{"1", "1"}, {"2", "1"}},
	)

	assert.Empty(t, DetectDuplicates(rel, "Date", "Student ID"))
}

func TestDetectDuplicatesDistinguishesKinds(t *testing.T) {
	// A text "1" and a numeric 1 are different keys.
	rel := New(
		[]string{"K"},
		[][]Value{{StringValue("1")}, {NumberValue(1)}},
	)

	assert.Empty(t, DetectDuplicates(rel, "K"))
}
