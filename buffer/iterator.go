package buffer

import (
	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
)

// Iterator walks a buffer from the first spilled page to the last in memory row.
// Rewind starts over without touching the buffer.
type Iterator struct {
	buffer  *ResettableExternalBuffer
	version int
	page    int
	rows    []data.Row
	pos     int
	inMem   bool
	row     data.Row
	err     error
}

func (i *Iterator) Advance() bool {
	if i.err != nil {
		return false
	}

	if i.version != i.buffer.version {
		i.err = errors.New(`buffer was reset while iterating`)
		return false
	}

	for i.pos >= len(i.rows) {
		if i.inMem {
			i.row = nil
			return false
		}

		if i.page < i.buffer.pages {
			rows, err := i.buffer.readPage(i.page)
			if err != nil {
				i.err = err
				return false
			}
			i.rows = rows
			i.page++
		} else {
			i.rows = i.buffer.rows
			i.inMem = true
		}
		i.pos = 0
	}

	i.row = i.rows[i.pos]
	i.pos++

	return true
}

func (i *Iterator) Row() data.Row {
	return i.row
}

func (i *Iterator) Err() error {
	return i.err
}

// Rewind positions the iterator before the first row again.
func (i *Iterator) Rewind() {
	i.page = 0
	i.rows = nil
	i.pos = 0
	i.inMem = false
	i.row = nil
	i.err = nil
	i.version = i.buffer.version
}
