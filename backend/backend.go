/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package backend

// Builder creates a named backend. Spill buffers call it once per buffer instance.
type Builder func(name string) (Backend, error)

type Backend interface {
	Name() string
	Set(key []byte, value []byte) error
	// Get returns nil without an error when the key does not exist.
	Get(key []byte) ([]byte, error)
	// RangeIterator iterates keys in [fromKey, toKey) in ascending byte order.
	RangeIterator(fromKey []byte, toKey []byte) Iterator
	Iterator() Iterator
	Delete(key []byte) error
	String() string
	Persistent() bool
	Close() error
	Destroy() error
}

// PrefixEnd returns the smallest key greater than every key starting with prefix,
// or nil when there is none.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil
}
