package relation

import (
	"math"
	"strconv"
	"strings"
)

// unnamedColumn replaces header cells that are blank after trimming.
const unnamedColumn = "Unnamed"

// DedupHeaders normalizes a raw header row into unique column names.
// Each name is trimmed, blanks become "Unnamed", and repeated names get
// an occurrence suffix: the first stays bare, the second becomes "Name1",
// the third "Name2", and so on. A suffixed name that collides with a
// later raw header keeps counting until it is unique.
func DedupHeaders(raw []string) []string {
	names := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = unnamedColumn
		}
		names[i] = h
	}

	count := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		candidate := n
		if c := count[n]; c > 0 {
			candidate = n + strconv.Itoa(c)
		}
		count[n]++
		for used[candidate] {
			candidate = n + strconv.Itoa(count[n])
			count[n]++
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// Build assembles a Relation from a worksheet grid: the raw header row
// plus data rows of string cells. Rows shorter than the header are padded
// and longer rows are truncated. A cell whose raw text is empty becomes
// null; other cells become text. Columns named in numeric are coerced to
// numbers instead, with unparseable or empty cells counting as zero.
// Numeric names are matched against the deduplicated header, so only the
// first occurrence of a repeated name is coerced.
func Build(header []string, rows [][]string, numeric ...string) Relation {
	cols := DedupHeaders(header)
	numericCol := make(map[string]bool, len(numeric))
	for _, n := range numeric {
		numericCol[n] = true
	}

	out := make([][]Value, len(rows))
	for i, raw := range rows {
		cells := make([]Value, len(cols))
		for j, name := range cols {
			var text string
			if j < len(raw) {
				text = raw[j]
			}
			switch {
			case numericCol[name]:
				cells[j] = NumberValue(coerceNumber(text))
			case text == "":
				cells[j] = NullValue()
			default:
				cells[j] = StringValue(text)
			}
		}
		out[i] = cells
	}
	return New(cols, out)
}

// coerceNumber parses a cell as float64, mapping anything unparseable,
// non-finite, or empty to zero.
func coerceNumber(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
