package data

import (
	"math"
	"testing"
)

func TestNaturalComparator(t *testing.T) {
	tests := []struct {
		name string
		a, b Row
		want int
	}{
		{name: `equal_ints`, a: NewRow(1, `a`), b: NewRow(1, `a`), want: 0},
		{name: `less_int`, a: NewRow(1), b: NewRow(2), want: -1},
		{name: `greater_second_field`, a: NewRow(1, `b`), b: NewRow(1, `a`), want: 1},
		{name: `null_first`, a: NewRow(nil), b: NewRow(0), want: -1},
		{name: `both_null`, a: NewRow(nil), b: NewRow(nil), want: 0},
		{name: `shorter_prefix`, a: NewRow(1), b: NewRow(1, 2), want: -1},
		{name: `bytes`, a: NewRow([]byte(`b`)), b: NewRow([]byte(`a`)), want: 1},
		{name: `bools`, a: NewRow(false), b: NewRow(true), want: -1},
		{name: `floats`, a: NewRow(1.5), b: NewRow(1.5), want: 0},
		{name: `nan_above_floats`, a: NewRow(math.NaN()), b: NewRow(math.Inf(1)), want: 1},
		{name: `float_below_nan`, a: NewRow(2.0), b: NewRow(math.NaN()), want: -1},
		{name: `nan_equals_nan`, a: NewRow(math.NaN()), b: NewRow(math.NaN()), want: 0},
		{name: `negative_zero_first`, a: NewRow(math.Copysign(0, -1)), b: NewRow(0.0), want: -1},
		{name: `plain_int_as_int64`, a: Row{1}, b: NewRow(int64(1)), want: 0},
		{name: `mixed_types_by_rank`, a: NewRow(`1`), b: NewRow(1), want: 1},
		{name: `int_before_float`, a: NewRow(5), b: NewRow(1.0), want: -1},
		{name: `unsupported_last`, a: Row{uint(1)}, b: NewRow([]byte(`z`)), want: 1},
		{name: `unsupported_by_value`, a: Row{uint(1)}, b: Row{uint(2)}, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NaturalComparator(tt.a, tt.b); got != tt.want {
				t.Errorf("NaturalComparator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullFilter_AnyNull(t *testing.T) {
	tests := []struct {
		name   string
		filter NullFilter
		key    Row
		want   bool
	}{
		{name: `no_filter`, filter: nil, key: NewRow(nil), want: false},
		{name: `filtered_null`, filter: FilterAll(2), key: NewRow(1, nil), want: true},
		{name: `unflagged_null`, filter: NullFilter{true, false}, key: NewRow(1, nil), want: false},
		{name: `no_nulls`, filter: FilterAll(2), key: NewRow(1, 2), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.AnyNull(tt.key); got != tt.want {
				t.Errorf("AnyNull() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldProjection(t *testing.T) {
	p := FieldProjection(2, 0)
	key := p(NewRow(1, `x`, `k`))
	if NaturalComparator(key, NewRow(`k`, 1)) != 0 {
		t.Errorf(`unexpected key %s`, key)
	}
}

func TestRow_Int64(t *testing.T) {
	r := NewRow(10, `s`)
	if v, err := r.Int64(0); err != nil || v != 10 {
		t.Errorf(`expected 10, got %d (%v)`, v, err)
	}

	if _, err := r.Int64(1); err == nil {
		t.Error(`expected type error`)
	}

	if _, err := r.Int64(5); err == nil {
		t.Error(`expected range error`)
	}
}

func TestRow_Copy(t *testing.T) {
	b := []byte(`abc`)
	r := NewRow(b)
	c := r.Copy()
	b[0] = 'x'
	if string(c[0].([]byte)) != `abc` {
		t.Error(`copy shares byte slices`)
	}
}
