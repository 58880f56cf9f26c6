package file

import (
	"fmt"
	"os"
	"testing"
)

func newTestBackend(t *testing.T) *fileBackend {
	conf := NewConfig()
	conf.Dir = t.TempDir()

	b, err := NewFileBackend(`test`, conf)
	if err != nil {
		t.Fatal(err)
	}

	return b.(*fileBackend)
}

func TestFileBackend_SetGet(t *testing.T) {
	b := newTestBackend(t)
	defer b.Destroy()

	for i := 0; i < 100; i++ {
		if err := b.Set([]byte(fmt.Sprintf(`k%03d`, i)), []byte(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 100; i++ {
		v, err := b.Get([]byte(fmt.Sprintf(`k%03d`, i)))
		if err != nil {
			t.Fatal(err)
		}
		if string(v) != fmt.Sprint(i) {
			t.Errorf(`expected %d, got %s`, i, v)
		}
	}

	v, err := b.Get([]byte(`unknown`))
	if err != nil || v != nil {
		t.Errorf(`expected nil value, got %v (%v)`, v, err)
	}
}

func TestFileBackend_Overwrite(t *testing.T) {
	b := newTestBackend(t)
	defer b.Destroy()

	if err := b.Set([]byte(`k`), []byte(`first`)); err != nil {
		t.Fatal(err)
	}
	if err := b.Set([]byte(`k`), []byte(`second`)); err != nil {
		t.Fatal(err)
	}

	v, err := b.Get([]byte(`k`))
	if err != nil {
		t.Fatal(err)
	}

	if string(v) != `second` {
		t.Errorf(`expected second, got %s`, v)
	}
}

func TestFileBackend_DeleteAndIterate(t *testing.T) {
	b := newTestBackend(t)
	defer b.Destroy()

	for _, k := range []string{`b`, `a`, `c`} {
		if err := b.Set([]byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	if err := b.Delete([]byte(`b`)); err != nil {
		t.Fatal(err)
	}

	var got string
	for i := b.Iterator(); i.Valid(); i.Next() {
		got += string(i.Value())
	}

	if got != `ac` {
		t.Errorf(`unexpected iteration %s`, got)
	}
}

func TestFileBackend_Destroy(t *testing.T) {
	b := newTestBackend(t)
	if err := b.Set([]byte(`k`), []byte(`v`)); err != nil {
		t.Fatal(err)
	}

	if err := b.Destroy(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(b.path); !os.IsNotExist(err) {
		t.Errorf(`spill file still exists: %v`, err)
	}

	if err := b.Set([]byte(`k`), []byte(`v`)); err == nil {
		t.Error(`expected error writing to a destroyed backend`)
	}
}

func TestFileBackend_DeleteReclaimsSpace(t *testing.T) {
	b := newTestBackend(t)
	defer b.Destroy()

	size := func() int64 {
		info, err := os.Stat(b.path)
		if err != nil {
			t.Fatal(err)
		}
		return info.Size()
	}

	for round := 0; round < 3; round++ {
		for _, k := range []string{`p0`, `p1`, `p2`} {
			if err := b.Set([]byte(k), []byte(`page of rows`)); err != nil {
				t.Fatal(err)
			}
		}

		if err := b.Delete([]byte(`p0`)); err != nil {
			t.Fatal(err)
		}
		if size() == 0 {
			t.Fatal(`file truncated while keys are live`)
		}

		if err := b.Delete([]byte(`p1`)); err != nil {
			t.Fatal(err)
		}
		if err := b.Delete([]byte(`p2`)); err != nil {
			t.Fatal(err)
		}

		if s := size(); s != 0 {
			t.Errorf(`round %d: expected an empty spill file, got %d bytes`, round, s)
		}
	}

	if err := b.Set([]byte(`k`), []byte(`v`)); err != nil {
		t.Fatal(err)
	}
	if v, err := b.Get([]byte(`k`)); err != nil || string(v) != `v` {
		t.Errorf(`expected v after truncate, got %s (%v)`, v, err)
	}
}
