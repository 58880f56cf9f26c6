/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"fmt"
	"testing"

	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

func TestMemory_Get(t *testing.T) {
	backend := NewMemoryBackend(`test`, log.Constructor.Log(), metrics.NoopReporter())

	for i := 1; i <= 1000; i++ {
		if err := backend.Set([]byte(fmt.Sprint(i)), []byte(`100`)); err != nil {
			t.Fatal(err)
		}
	}

	for i := 1; i <= 1000; i++ {
		val, err := backend.Get([]byte(fmt.Sprint(i)))
		if err != nil {
			t.Error(err)
		}

		if string(val) != `100` {
			t.Fail()
		}
	}
}

func TestMemory_Delete(t *testing.T) {
	backend := NewMemoryBackend(`test`, log.Constructor.Log(), metrics.NoopReporter())

	if err := backend.Set([]byte(`100`), []byte(`100`)); err != nil {
		t.Fatal(err)
	}

	if err := backend.Delete([]byte(`100`)); err != nil {
		t.Fatal(err)
	}

	val, err := backend.Get([]byte(`100`))
	if err != nil {
		t.Error(err)
	}

	if val != nil {
		t.Fail()
	}
}

func TestMemory_Iterator_Sorted(t *testing.T) {
	backend := NewMemoryBackend(`test`, log.Constructor.Log(), metrics.NoopReporter())
	for _, k := range []string{`c`, `a`, `b`} {
		if err := backend.Set([]byte(k), []byte(k+k)); err != nil {
			t.Fatal(err)
		}
	}

	var got string
	i := backend.Iterator()
	for i.SeekToFirst(); i.Valid(); i.Next() {
		got += string(i.Key()) + `=` + string(i.Value()) + `;`
	}

	if got != `a=aa;b=bb;c=cc;` {
		t.Errorf(`unexpected iteration %s`, got)
	}
}

func TestMemory_RangeIterator(t *testing.T) {
	backend := NewMemoryBackend(`test`, log.Constructor.Log(), metrics.NoopReporter())
	for _, k := range []string{`p1/a`, `p1/b`, `p2/a`, `p0/z`} {
		if err := backend.Set([]byte(k), []byte(`v`)); err != nil {
			t.Fatal(err)
		}
	}

	var keys []string
	i := backend.RangeIterator([]byte(`p1/`), []byte(`p10`))
	for ; i.Valid(); i.Next() {
		keys = append(keys, string(i.Key()))
	}

	if fmt.Sprint(keys) != `[p1/a p1/b]` {
		t.Errorf(`unexpected range %v`, keys)
	}
}

func TestMemory_Destroy(t *testing.T) {
	backend := NewMemoryBackend(`test`, log.Constructor.Log(), metrics.NoopReporter())
	if err := backend.Set([]byte(`k`), []byte(`v`)); err != nil {
		t.Fatal(err)
	}

	if err := backend.Destroy(); err != nil {
		t.Fatal(err)
	}

	if backend.Iterator().Valid() {
		t.Error(`backend not empty after destroy`)
	}
}
