package batch

import (
	"reflect"
	"testing"

	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
)

func TestSortMergeOneSideOuterJoinIterator_AdvanceOuter(t *testing.T) {
	probe := []data.Row{kv(nil, `n`), kv(1, `a`), kv(2, `b`), kv(2, `c`), kv(4, `d`), kv(9, `e`)}
	build := []data.Row{kv(0, `w`), kv(1, `x`), kv(1, `y`), kv(3, `z`), kv(4, `q`)}

	conf := keyedConfig()
	conf.FilterNullKeys = data.FilterAll(1)
	itr, err := NewSortMergeOneSideOuterJoinIterator(NewSliceIterator(probe...), NewSliceIterator(build...), conf)
	if err != nil {
		t.Fatal(err)
	}
	defer itr.Close()

	expected := map[string][]string{
		`n`: nil,
		`a`: {`x`, `y`},
		`b`: nil,
		`c`: nil,
		`d`: {`q`},
		`e`: nil,
	}

	events := 0
	for {
		ok, err := itr.AdvanceOuter()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		events++

		var got []string
		if m := itr.Matches(); m != nil {
			got = values(t, m)
		}

		v := itr.ProbeRow()[1].(string)
		if !reflect.DeepEqual(got, expected[v]) {
			t.Errorf(`probe row %s: expected %v, got %v`, v, expected[v], got)
		}

		if got == nil && itr.MatchKey() != nil {
			t.Errorf(`probe row %s: expected match state to be cleared`, v)
		}
	}

	if events != len(probe) {
		t.Errorf(`expected %d outer events, got %d`, len(probe), events)
	}
}

func TestSortMergeOneSideOuterJoinIterator_EmptyBuild(t *testing.T) {
	itr, err := NewSortMergeOneSideOuterJoinIterator(NewSliceIterator(kv(1, `a`), kv(2, `b`)), NewSliceIterator(), keyedConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer itr.Close()

	events := 0
	for {
		ok, err := itr.AdvanceOuter()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}

		if itr.Matches() != nil {
			t.Errorf(`unexpected match for %s`, itr.ProbeRow())
		}
		events++
	}

	if events != 2 {
		t.Errorf(`expected 2 events, got %d`, events)
	}
}

func TestSortMergeFullOuterJoinIterator_NextOuter(t *testing.T) {
	left := []data.Row{kv(nil, `n`), kv(1, `a`), kv(1, `b`), kv(2, `c`), kv(5, `d`)}
	right := []data.Row{kv(nil, `m`), kv(1, `x`), kv(3, `y`), kv(5, `z`), kv(5, `q`), kv(6, `r`)}

	conf := keyedConfig()
	conf.FilterNullKeys = data.FilterAll(1)
	conf.BufferOptions = []buffer.Options{buffer.InMemoryRows(1), buffer.PageRows(1)}
	itr, err := NewSortMergeFullOuterJoinIterator(NewSliceIterator(left...), NewSliceIterator(right...), conf)
	if err != nil {
		t.Fatal(err)
	}
	defer itr.Close()

	type run struct {
		left, right []string
	}
	expected := []run{
		{left: []string{`n`}},
		{right: []string{`m`}},
		{left: []string{`a`, `b`}, right: []string{`x`}},
		{left: []string{`c`}},
		{right: []string{`y`}},
		{left: []string{`d`}, right: []string{`z`, `q`}},
		{right: []string{`r`}},
	}

	var got []run
	for {
		ok, err := itr.NextOuter()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, run{left: values(t, itr.LeftMatches()), right: values(t, itr.RightMatches())})
	}

	if !reflect.DeepEqual(got, expected) {
		t.Errorf(`expected runs %v, got %v`, expected, got)
	}
}
