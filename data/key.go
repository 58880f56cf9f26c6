package data

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
)

// Projection extracts a join key from a row. It must be pure, it may be called
// more than once for the same row.
type Projection func(row Row) Row

// RecordComparator is a total order over keys. For the merge join it must agree with the
// order both inputs are sorted in.
type RecordComparator func(a, b Row) int

// FieldProjection projects the given field indexes into a new key row.
func FieldProjection(fields ...int) Projection {
	return func(row Row) Row {
		key := make(Row, len(fields))
		for i, f := range fields {
			key[i] = row[f]
		}
		return key
	}
}

// NullFilter flags, per key field, whether a null in that field excludes the key from matching.
type NullFilter []bool

// AnyNull reports whether a flagged key field is null.
func (f NullFilter) AnyNull(key Row) bool {
	for i, filter := range f {
		if filter && i < len(key) && key[i] == nil {
			return true
		}
	}

	return false
}

// FilterAll flags every one of n key fields.
func FilterAll(n int) NullFilter {
	f := make(NullFilter, n)
	for i := range f {
		f[i] = true
	}

	return f
}

// NaturalComparator orders keys field by field. Nulls sort first, shorter keys sort before
// longer keys with the same prefix.
func NaturalComparator(a, b Row) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		if c := CompareFields(a[i], b[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}

	return 0
}

// CompareFields is a total order over field values. Integers of any width compare as int64.
// Floats order like Java's Double.compare: -0 before +0 and NaN, equal to itself, above every
// other value. Values of different types order by type rank, nil first and unsupported types
// last by type name and formatted value.
func CompareFields(a, b interface{}) int {
	a, b = normalize(a), normalize(b)
	if ra, rb := rank(a), rank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int64:
		return cmp.Compare(x, b.(int64))
	case float64:
		return compareFloats(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case []byte:
		return bytes.Compare(x, b.([]byte))
	}

	if c := cmp.Compare(fmt.Sprintf(`%T`, a), fmt.Sprintf(`%T`, b)); c != 0 {
		return c
	}

	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}

	return v
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64:
		return 2
	case float64:
		return 3
	case string:
		return 4
	case []byte:
		return 5
	}

	return 6
}

func compareFloats(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}

	xNaN, yNaN := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xNaN && yNaN:
		return 0
	case xNaN:
		return 1
	case yNaN:
		return -1
	}

	// equal values, only the sign of a zero can differ
	switch xs, ys := math.Signbit(x), math.Signbit(y); {
	case xs && !ys:
		return -1
	case !xs && ys:
		return 1
	}

	return 0
}
