package batch

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/kjoin/join"
)

func side(r data.Row) string {
	if r == nil {
		return `-`
	}

	return r[1].(string)
}

func runJoin(t *testing.T, typ join.Type, conf *Config, left, right []data.Row) []string {
	t.Helper()
	joiner := &Joiner{
		Type:     typ,
		LeftKey:  data.FieldProjection(0),
		RightKey: data.FieldProjection(0),
		Condition: func(l, r data.Row) (bool, error) {
			return r[1] != `y`, nil
		},
		Config: conf,
	}

	var out []string
	err := joiner.Join(context.Background(), NewSliceIterator(left...), NewSliceIterator(right...), func(ctx context.Context, l, r data.Row) error {
		out = append(out, side(l)+`|`+side(r))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	return out
}

func TestJoiner_Join(t *testing.T) {
	left := []data.Row{kv(1, `a`), kv(2, `b`), kv(4, `d`)}
	right := []data.Row{kv(1, `x`), kv(1, `y`), kv(3, `z`), kv(4, `w`)}

	tests := []struct {
		typ      join.Type
		expected []string
	}{
		{join.InnerJoin, []string{`a|x`, `d|w`}},
		{join.LeftOuterJoin, []string{`a|x`, `b|-`, `d|w`}},
		{join.RightOuterJoin, []string{`a|x`, `-|y`, `-|z`, `d|w`}},
		{join.FullOuterJoin, []string{`a|x`, `-|y`, `b|-`, `-|z`, `d|w`}},
	}

	for _, test := range tests {
		t.Run(test.typ.String(), func(t *testing.T) {
			if got := runJoin(t, test.typ, nil, left, right); !reflect.DeepEqual(got, test.expected) {
				t.Errorf(`expected %v, got %v`, test.expected, got)
			}

			conf := NewConfig()
			conf.BufferOptions = []buffer.Options{buffer.InMemoryRows(1), buffer.PageRows(1)}
			if got := runJoin(t, test.typ, conf, left, right); !reflect.DeepEqual(got, test.expected) {
				t.Errorf(`spilled: expected %v, got %v`, test.expected, got)
			}
		})
	}
}

func TestJoiner_Join_CrossProduct(t *testing.T) {
	left := []data.Row{kv(7, `a`), kv(7, `b`)}
	right := []data.Row{kv(7, `x`), kv(7, `z`)}

	expected := []string{`a|x`, `a|z`, `b|x`, `b|z`}
	for _, typ := range []join.Type{join.InnerJoin, join.LeftOuterJoin, join.FullOuterJoin} {
		if got := runJoin(t, typ, nil, left, right); !reflect.DeepEqual(got, expected) {
			t.Errorf(`%s: expected %v, got %v`, typ, expected, got)
		}
	}
}

func TestJoiner_Join_KeyTypes(t *testing.T) {
	tests := []struct {
		name        string
		left, right []data.Row
		expected    []string
	}{
		{
			name:     `nan_key`,
			left:     []data.Row{data.NewRow(math.NaN(), `a`)},
			right:    []data.Row{data.NewRow(1.0, `x`), data.NewRow(2.0, `z`)},
			expected: nil,
		},
		{
			name:     `nan_keys_match`,
			left:     []data.Row{data.NewRow(1.0, `a`), data.NewRow(math.NaN(), `b`)},
			right:    []data.Row{data.NewRow(math.NaN(), `x`)},
			expected: []string{`b|x`},
		},
		{
			name:     `plain_ints`,
			left:     []data.Row{{1, `a`}, {2, `b`}},
			right:    []data.Row{data.NewRow(2, `x`)},
			expected: []string{`b|x`},
		},
		{
			name:     `mixed_types`,
			left:     []data.Row{data.NewRow(`k`, `a`)},
			right:    []data.Row{data.NewRow(1, `x`), data.NewRow(2.5, `z`)},
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := runJoin(t, join.InnerJoin, nil, test.left, test.right); !reflect.DeepEqual(got, test.expected) {
				t.Errorf(`expected %v, got %v`, test.expected, got)
			}
		})
	}
}

func TestJoiner_Join_Errors(t *testing.T) {
	collect := func(ctx context.Context, l, r data.Row) error { return nil }

	t.Run(`invalid type`, func(t *testing.T) {
		j := &Joiner{Type: join.Type(9), LeftKey: data.FieldProjection(0), RightKey: data.FieldProjection(0)}
		if err := j.Join(context.Background(), NewSliceIterator(), NewSliceIterator(), collect); !errdefs.IsInvalidArgument(err) {
			t.Errorf(`expected invalid argument, got %v`, err)
		}
	})

	t.Run(`unsorted`, func(t *testing.T) {
		j := &Joiner{Type: join.LeftOuterJoin, LeftKey: data.FieldProjection(0), RightKey: data.FieldProjection(0)}
		err := j.Join(context.Background(), NewSliceIterator(kv(3, `a`), kv(1, `b`)), NewSliceIterator(kv(1, `x`)), collect)
		if !errdefs.IsDataCorruption(err) {
			t.Errorf(`expected data corruption, got %v`, err)
		}
	})

	t.Run(`collector`, func(t *testing.T) {
		j := &Joiner{Type: join.InnerJoin, LeftKey: data.FieldProjection(0), RightKey: data.FieldProjection(0)}
		failed := errors.New(`sink closed`)
		err := j.Join(context.Background(), NewSliceIterator(kv(1, `a`)), NewSliceIterator(kv(1, `x`)), func(ctx context.Context, l, r data.Row) error {
			return failed
		})
		if err != failed {
			t.Errorf(`expected collector error, got %v`, err)
		}
	})

	t.Run(`cancelled`, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		j := &Joiner{Type: join.InnerJoin, LeftKey: data.FieldProjection(0), RightKey: data.FieldProjection(0)}
		if err := j.Join(ctx, NewSliceIterator(kv(1, `a`)), NewSliceIterator(kv(1, `x`)), collect); err != context.Canceled {
			t.Errorf(`expected context cancellation, got %v`, err)
		}
	})
}
