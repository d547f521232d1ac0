package relation

// LeftJoin appends the take columns from lookup onto base, matching rows
// by exact equality of the key column. When several lookup rows share a
// key the first one wins, so the output always has exactly one row per
// base row. Base rows with no match get nulls in the appended columns.
//
// Joining with an empty side yields the empty relation. A join that
// cannot be performed at all, because base or lookup is missing the key
// or lookup is missing a take column, returns base unchanged. Take
// columns already present in base are skipped.
func LeftJoin(base, lookup Relation, key string, take ...string) Relation {
	if base.IsEmpty() || lookup.IsEmpty() {
		return Relation{}
	}
	if !base.HasColumn(key) || !lookup.HasColumn(key) {
		return base
	}
	for _, c := range take {
		if !lookup.HasColumn(c) {
			return base
		}
	}

	appended := make([]string, 0, len(take))
	for _, c := range take {
		if !base.HasColumn(c) {
			appended = append(appended, c)
		}
	}

	first := make(map[Value]Row, lookup.Len())
	for i := 0; i < lookup.Len(); i++ {
		k := lookup.Value(i, key)
		if _, ok := first[k]; !ok {
			first[k] = lookup.Row(i)
		}
	}

	cols := append(base.Columns(), appended...)
	rows := make([][]Value, base.Len())
	for i := 0; i < base.Len(); i++ {
		src := base.Row(i)
		cells := make([]Value, 0, len(cols))
		for j := 0; j < src.Len(); j++ {
			cells = append(cells, src.At(j))
		}
		match, ok := first[base.Value(i, key)]
		for _, c := range appended {
			if ok {
				cells = append(cells, match.Get(c))
			} else {
				cells = append(cells, NullValue())
			}
		}
		rows[i] = cells
	}
	return New(cols, rows)
}
