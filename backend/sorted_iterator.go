package backend

import (
	"bytes"
	"sort"
)

// FetchFunc loads the value of a key captured by a snapshot iterator.
type FetchFunc func(key []byte) ([]byte, error)

type sortedIterator struct {
	keys  [][]byte
	fetch FetchFunc
	pos   int
	value []byte
	err   error
}

// NewSortedIterator iterates a snapshot of keys in ascending byte order, positioned at the
// first key. Values are fetched lazily, a key deleted after the snapshot yields a nil value.
func NewSortedIterator(keys [][]byte, fetch FetchFunc) Iterator {
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})

	i := &sortedIterator{
		keys:  keys,
		fetch: fetch,
	}
	i.SeekToFirst()

	return i
}

// RangeKeys keeps the keys in [from, to). A nil bound is open.
func RangeKeys(keys [][]byte, from, to []byte) [][]byte {
	ranged := keys[:0]
	for _, k := range keys {
		if from != nil && bytes.Compare(k, from) < 0 {
			continue
		}
		if to != nil && bytes.Compare(k, to) >= 0 {
			continue
		}
		ranged = append(ranged, k)
	}

	return ranged
}

func (i *sortedIterator) SeekToFirst() {
	i.seekTo(0)
}

func (i *sortedIterator) Seek(key []byte) {
	i.seekTo(sort.Search(len(i.keys), func(n int) bool {
		return bytes.Compare(i.keys[n], key) >= 0
	}))
}

func (i *sortedIterator) Next() {
	i.seekTo(i.pos + 1)
}

func (i *sortedIterator) seekTo(pos int) {
	i.pos = pos
	i.value = nil
	if !i.Valid() {
		return
	}

	v, err := i.fetch(i.keys[pos])
	if err != nil {
		i.err = err
		return
	}
	i.value = v
}

func (i *sortedIterator) Close() {
	i.keys = nil
}

func (i *sortedIterator) Key() []byte {
	return i.keys[i.pos]
}

func (i *sortedIterator) Value() []byte {
	return i.value
}

func (i *sortedIterator) Valid() bool {
	return i.err == nil && i.pos >= 0 && i.pos < len(i.keys)
}

func (i *sortedIterator) Error() error {
	return i.err
}
