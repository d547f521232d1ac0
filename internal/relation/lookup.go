package relation

import "strings"

// FindIndex returns the index of the first row whose key column equals
// key after trimming and lowercasing both sides.
func FindIndex(rel Relation, keyCol, key string) (int, bool) {
	want := strings.ToLower(strings.TrimSpace(key))
	for i := 0; i < rel.Len(); i++ {
		cell := strings.ToLower(strings.TrimSpace(rel.Value(i, keyCol).String()))
		if cell == want {
			return i, true
		}
	}
	return 0, false
}

// FindOne returns the first row whose key column matches key under the
// same normalization as FindIndex.
func FindOne(rel Relation, keyCol, key string) (Row, bool) {
	i, ok := FindIndex(rel, keyCol, key)
	if !ok {
		return Row{}, false
	}
	return rel.Row(i), true
}
