package relation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind discriminates the payloads a cell can carry.
type Kind int

const (
	// KindNull marks a cell with no content.
	KindNull Kind = iota
	// KindText marks a cell holding free-form text.
	KindText
	// KindNumber marks a cell coerced to a float64.
	KindNumber
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is a single immutable cell. Construct values through NullValue,
// StringValue and NumberValue so unused payload fields stay zeroed;
// equality is plain struct comparison.
type Value struct {
	Kind Kind
	Text string
	Num  float64
}

// NullValue returns the cell with no content.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// StringValue returns a text cell.
func StringValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// NumberValue returns a numeric cell.
func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// IsNull reports whether the cell has no content.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Float returns the numeric payload, or zero for non-numeric cells.
func (v Value) Float() float64 {
	if v.Kind == KindNumber {
		return v.Num
	}
	return 0
}

// String renders the cell for display: null becomes the empty string and
// numbers print without a trailing ".0".
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports exact equality: two cells match only when both kind and
// payload agree, so the text "3" never equals the number 3.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Compare orders cells for sorting: null first, then numbers by value,
// then text lexicographically.
func (v Value) Compare(o Value) int {
	if v.Kind != o.Kind {
		return int(v.Kind) - int(o.Kind)
	}
	switch v.Kind {
	case KindNumber:
		switch {
		case v.Num < o.Num:
			return -1
		case v.Num > o.Num:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(v.Text, o.Text)
	default:
		return 0
	}
}

// MarshalJSON encodes the cell as a native JSON value: null, a string,
// or a number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

// Native returns the cell as the value its JSON encoding produces:
// nil, string, or float64.
func (v Value) Native() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Num
	default:
		return nil
	}
}
