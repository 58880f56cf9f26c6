package batch

import (
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/log"
)

// SortMergeFullOuterJoinIterator advances both inputs by equal key runs. Each step fills the
// left buffer, the right buffer, or both when the run keys are equal. Rows with a null
// filtered key form a run of their own and never match.
type SortMergeFullOuterJoinIterator struct {
	conf        *Config
	left        *cursor
	right       *cursor
	leftBuffer  *buffer.ResettableExternalBuffer
	rightBuffer *buffer.ResettableExternalBuffer
	matchKey    data.Row
	err         error
	logger      log.Logger
}

// NewSortMergeFullOuterJoinIterator keys the left input by ProbeProjection and the right
// input by BufferedProjection.
func NewSortMergeFullOuterJoinIterator(left, right RowIterator, conf *Config) (*SortMergeFullOuterJoinIterator, error) {
	conf.parse()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	itr := &SortMergeFullOuterJoinIterator{
		conf: conf,
		left: &cursor{
			side:       `left`,
			input:      left,
			projection: conf.ProbeProjection,
			comparator: conf.Comparator,
			filter:     conf.FilterNullKeys,
		},
		right: &cursor{
			side:       `right`,
			input:      right,
			projection: conf.BufferedProjection,
			comparator: conf.Comparator,
			filter:     conf.FilterNullKeys,
		},
		logger: conf.Logger.NewLog(log.Prefixed(`sort-merge-full-outer-join`)),
	}

	var err error
	if itr.leftBuffer, err = conf.newBuffer(); err != nil {
		return nil, errors.WithPrevious(err, `cannot create left buffer`)
	}

	if itr.rightBuffer, err = conf.newBuffer(); err != nil {
		itr.leftBuffer.Close()
		return nil, errors.WithPrevious(err, `cannot create right buffer`)
	}

	if _, err := itr.left.next(); err != nil {
		itr.Close()
		return nil, err
	}

	if _, err := itr.right.next(); err != nil {
		itr.Close()
		return nil, err
	}

	return itr, nil
}

// NextOuter loads the next run. It returns false once both inputs are exhausted.
func (i *SortMergeFullOuterJoinIterator) NextOuter() (bool, error) {
	if i.err != nil {
		return false, i.err
	}

	ok, err := i.next()
	if err != nil {
		i.err = err
		return false, err
	}

	return ok, nil
}

func (i *SortMergeFullOuterJoinIterator) next() (bool, error) {
	if err := i.leftBuffer.Reset(); err != nil {
		return false, errors.WithPrevious(err, `cannot reset left buffer`)
	}

	if err := i.rightBuffer.Reset(); err != nil {
		return false, errors.WithPrevious(err, `cannot reset right buffer`)
	}
	i.matchKey = nil

	hasLeft, hasRight := i.left.row != nil, i.right.row != nil

	var err error
	switch {
	case !hasLeft && !hasRight:
		i.logger.Debug(fmt.Sprintf(`inputs exhausted after %d left and %d right rows`, i.left.count, i.right.count))
		return false, nil
	case hasLeft && i.left.filtered(i.left.key):
		err = i.bufferSingle(i.left, i.leftBuffer)
	case hasRight && i.right.filtered(i.right.key):
		err = i.bufferSingle(i.right, i.rightBuffer)
	case !hasRight:
		err = i.bufferRun(i.left, i.leftBuffer)
	case !hasLeft:
		err = i.bufferRun(i.right, i.rightBuffer)
	default:
		cmp := i.conf.Comparator(i.left.key, i.right.key)
		if cmp <= 0 {
			err = i.bufferRun(i.left, i.leftBuffer)
		}
		if err == nil && cmp >= 0 {
			err = i.bufferRun(i.right, i.rightBuffer)
		}
	}

	if err != nil {
		return false, err
	}

	i.leftBuffer.Complete()
	i.rightBuffer.Complete()

	return true, nil
}

func (i *SortMergeFullOuterJoinIterator) bufferSingle(c *cursor, b *buffer.ResettableExternalBuffer) error {
	if err := b.Add(c.row); err != nil {
		return errors.WithPrevious(err, `cannot buffer row`)
	}

	_, err := c.next()
	return err
}

func (i *SortMergeFullOuterJoinIterator) bufferRun(c *cursor, b *buffer.ResettableExternalBuffer) error {
	key := c.key
	i.matchKey = key
	for {
		if err := b.Add(c.row); err != nil {
			return errors.WithPrevious(err, `cannot buffer row`)
		}

		ok, err := c.next()
		if err != nil {
			return err
		}

		if !ok || c.filtered(c.key) || i.conf.Comparator(c.key, key) != 0 {
			return nil
		}
	}
}

// MatchKey is the key of the current run, nil for a null filtered row.
func (i *SortMergeFullOuterJoinIterator) MatchKey() data.Row {
	return i.matchKey
}

// LeftMatches iterates the left rows of the current run. It is empty when the run only
// has right rows.
func (i *SortMergeFullOuterJoinIterator) LeftMatches() *buffer.Iterator {
	return i.leftBuffer.NewIterator()
}

func (i *SortMergeFullOuterJoinIterator) RightMatches() *buffer.Iterator {
	return i.rightBuffer.NewIterator()
}

func (i *SortMergeFullOuterJoinIterator) Close() error {
	if err := i.leftBuffer.Close(); err != nil {
		return err
	}

	if i.rightBuffer == nil {
		return nil
	}

	return i.rightBuffer.Close()
}
