package batch

import (
	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
)

// RowIterator is a single pass join input. Merge join inputs must be sorted ascending
// by the join key under the configured comparator.
type RowIterator interface {
	// Next returns nil, nil at the end of the input.
	Next() (data.Row, error)
}

type sliceIterator struct {
	rows []data.Row
	pos  int
}

// NewSliceIterator iterates in memory rows in the given order.
func NewSliceIterator(rows ...data.Row) RowIterator {
	return &sliceIterator{rows: rows}
}

func (i *sliceIterator) Next() (data.Row, error) {
	if i.pos >= len(i.rows) {
		return nil, nil
	}
	r := i.rows[i.pos]
	i.pos++

	return r, nil
}

// cursor reads one sorted input and checks that keys never go backwards. Keys excluded by
// the null filter take part in the order check, the comparator must order nulls.
type cursor struct {
	side       string
	input      RowIterator
	projection data.Projection
	comparator data.RecordComparator
	filter     data.NullFilter
	row        data.Row
	key        data.Row
	lastKey    data.Row
	count      int
}

func (c *cursor) next() (bool, error) {
	row, err := c.input.Next()
	if err != nil {
		return false, errors.WithPrevious(err, `cannot read `+c.side+` input`)
	}

	if row == nil {
		c.row, c.key = nil, nil
		return false, nil
	}

	key := c.projection(row)
	if c.lastKey != nil && c.comparator(key, c.lastKey) < 0 {
		return false, errdefs.DataCorruption(`%s input is not sorted, key %s follows %s`, c.side, key, c.lastKey)
	}

	c.row, c.key, c.lastKey = row, key, key
	c.count++

	return true, nil
}

// nextSuitable skips rows whose key is excluded by the null filter.
func (c *cursor) nextSuitable() (bool, error) {
	for {
		ok, err := c.next()
		if err != nil || !ok {
			return false, err
		}

		if !c.filtered(c.key) {
			return true, nil
		}
	}
}

func (c *cursor) filtered(key data.Row) bool {
	return c.filter.AnyNull(key)
}
