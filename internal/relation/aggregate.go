package relation

import (
	"math"
	"strconv"
	"strings"
)

// SumBy groups rows by the named columns and totals the measure column
// within each group. Groups appear in first-encounter order and the
// output carries one column per group key plus the measure. A group
// column missing from the relation contributes a null component; missing
// or non-numeric measures count as zero. An empty input yields an empty
// relation with the output schema.
func SumBy(rel Relation, groupBy []string, measure string) Relation {
	cols := append(append([]string{}, groupBy...), measure)
	if rel.IsEmpty() {
		return New(cols, nil)
	}

	type group struct {
		cells []Value
		sum   float64
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	for i := 0; i < rel.Len(); i++ {
		keyCells := make([]Value, len(groupBy))
		for j, c := range groupBy {
			keyCells[j] = rel.Value(i, c)
		}
		k := rowKey(keyCells)
		g, ok := groups[k]
		if !ok {
			g = &group{cells: keyCells}
			groups[k] = g
			order = append(order, k)
		}
		g.sum += rel.Value(i, measure).Float()
	}

	rows := make([][]Value, len(order))
	for i, k := range order {
		g := groups[k]
		rows[i] = append(append([]Value{}, g.cells...), NumberValue(g.sum))
	}
	return New(cols, rows)
}

// Total sums the named column across all rows, counting non-numeric
// cells as zero.
func Total(rel Relation, col string) float64 {
	var sum float64
	for i := 0; i < rel.Len(); i++ {
		sum += rel.Value(i, col).Float()
	}
	return sum
}

// DetectDuplicates returns, in ascending order, the index of every row
// whose key-column tuple occurs more than once. All occurrences are
// reported, including the first. A key column missing from the relation
// contributes a null component for every row.
func DetectDuplicates(rel Relation, keys ...string) []int {
	counts := make(map[string]int, rel.Len())
	rowKeys := make([]string, rel.Len())
	for i := 0; i < rel.Len(); i++ {
		cells := make([]Value, len(keys))
		for j, c := range keys {
			cells[j] = rel.Value(i, c)
		}
		k := rowKey(cells)
		rowKeys[i] = k
		counts[k]++
	}

	var dups []int
	for i, k := range rowKeys {
		if counts[k] > 1 {
			dups = append(dups, i)
		}
	}
	return dups
}

// rowKey encodes a cell tuple into a string usable as a map key. Each
// cell is tagged with its kind and length-prefixed so distinct tuples
// can never collide.
func rowKey(cells []Value) string {
	var b strings.Builder
	for _, v := range cells {
		switch v.Kind {
		case KindText:
			b.WriteByte('t')
			b.WriteString(strconv.Itoa(len(v.Text)))
			b.WriteByte(':')
			b.WriteString(v.Text)
		case KindNumber:
			b.WriteByte('n')
			b.WriteString(strconv.FormatUint(math.Float64bits(v.Num), 16))
		default:
			b.WriteByte('0')
		}
		b.WriteByte(';')
	}
	return b.String()
}
