/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package batch

import (
	"context"
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/kjoin/join"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// Joiner runs a complete merge join over two key sorted inputs and hands every output pair
// to a collector in (left, right) order. A pair survives only if Condition accepts it, an
// outer row with no surviving pair is emitted padded with a nil partner.
type Joiner struct {
	Type      join.Type
	LeftKey   data.Projection
	RightKey  data.Projection
	Condition join.Condition
	Config    *Config
}

func (j *Joiner) Join(ctx context.Context, left, right RowIterator, collector join.Collector) error {
	if !j.Type.Valid() {
		return errdefs.InvalidArgument(`unsupported join type %d`, int(j.Type))
	}

	conf := j.Config
	if conf == nil {
		conf = NewConfig()
	}
	conf.parse()

	condition := j.Condition
	if condition == nil {
		condition = join.AcceptAll
	}

	logger := conf.Logger.NewLog(log.Prefixed(`merge-joiner`))
	logger.Debug("\n" + conf.String())
	emitted := conf.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `k_join_merge_emitted_rows`,
		Labels: []string{`type`, `padded`},
	})

	emit := func(ctx context.Context, l, r data.Row) error {
		emitted.Count(1, map[string]string{`type`: j.Type.String(), `padded`: fmt.Sprint(l == nil || r == nil)})
		return collector(ctx, l, r)
	}

	var err error
	switch j.Type {
	case join.InnerJoin:
		err = j.inner(ctx, left, right, conf.copyWith(j.LeftKey, j.RightKey), condition, emit)
	case join.LeftOuterJoin:
		err = j.oneSideOuter(ctx, left, right, conf.copyWith(j.LeftKey, j.RightKey), condition, emit, false)
	case join.RightOuterJoin:
		err = j.oneSideOuter(ctx, right, left, conf.copyWith(j.RightKey, j.LeftKey), condition, emit, true)
	case join.FullOuterJoin:
		err = j.fullOuter(ctx, left, right, conf.copyWith(j.LeftKey, j.RightKey), condition, emit)
	}

	if err != nil {
		logger.ErrorContext(ctx, fmt.Sprintf(`%s failed`, j.Type), err)
		return err
	}

	return nil
}

func (j *Joiner) inner(ctx context.Context, left, right RowIterator, conf *Config, condition join.Condition, emit join.Collector) (err error) {
	itr, err := NewSortMergeJoinIterator(left, right, conf)
	if err != nil {
		return err
	}
	defer closeWith(itr, &err)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := itr.NextInner()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		probe := itr.ProbeRow()
		if _, err := emitMatches(ctx, itr.Matches(), func(m data.Row) (bool, error) {
			return condition(probe, m)
		}, func(m data.Row) error {
			return emit(ctx, probe, m)
		}); err != nil {
			return err
		}
	}
}

// oneSideOuter preserves the outer input. When swapped the outer input is the right side
// and pairs are flipped back into (left, right) order before emitting.
func (j *Joiner) oneSideOuter(ctx context.Context, outer, inner RowIterator, conf *Config, condition join.Condition, emit join.Collector, swapped bool) (err error) {
	itr, err := NewSortMergeOneSideOuterJoinIterator(outer, inner, conf)
	if err != nil {
		return err
	}
	defer closeWith(itr, &err)

	pair := func(outerRow, innerRow data.Row) (data.Row, data.Row) {
		if swapped {
			return innerRow, outerRow
		}
		return outerRow, innerRow
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := itr.AdvanceOuter()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		probe := itr.ProbeRow()
		matched := 0
		if matches := itr.Matches(); matches != nil {
			matched, err = emitMatches(ctx, matches, func(m data.Row) (bool, error) {
				return condition(pair(probe, m))
			}, func(m data.Row) error {
				l, r := pair(probe, m)
				return emit(ctx, l, r)
			})
			if err != nil {
				return err
			}
		}

		if matched == 0 {
			l, r := pair(probe, nil)
			if err := emit(ctx, l, r); err != nil {
				return err
			}
		}
	}
}

func (j *Joiner) fullOuter(ctx context.Context, left, right RowIterator, conf *Config, condition join.Condition, emit join.Collector) (err error) {
	itr, err := NewSortMergeFullOuterJoinIterator(left, right, conf)
	if err != nil {
		return err
	}
	defer closeWith(itr, &err)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := itr.NextOuter()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		rights, err := bufferedRows(itr.RightMatches())
		if err != nil {
			return err
		}
		rightMatched := make([]bool, len(rights))

		lefts := itr.LeftMatches()
		for lefts.Advance() {
			l := lefts.Row()
			matched := false
			for idx, r := range rights {
				ok, err := condition(l, r)
				if err != nil {
					return errors.WithPrevious(err, `join condition failed`)
				}

				if !ok {
					continue
				}

				if err := emit(ctx, l, r); err != nil {
					return err
				}
				matched = true
				rightMatched[idx] = true
			}

			if !matched {
				if err := emit(ctx, l, nil); err != nil {
					return err
				}
			}
		}

		if err := lefts.Err(); err != nil {
			return err
		}

		for idx, r := range rights {
			if rightMatched[idx] {
				continue
			}

			if err := emit(ctx, nil, r); err != nil {
				return err
			}
		}
	}
}

// emitMatches emits every match accepted by the condition and returns how many were accepted.
func emitMatches(ctx context.Context, matches *buffer.Iterator, accept func(data.Row) (bool, error), emit func(data.Row) error) (int, error) {
	accepted := 0
	for matches.Advance() {
		m := matches.Row()
		ok, err := accept(m)
		if err != nil {
			return accepted, errors.WithPrevious(err, `join condition failed`)
		}

		if !ok {
			continue
		}

		if err := emit(m); err != nil {
			return accepted, err
		}
		accepted++
	}

	return accepted, matches.Err()
}

func bufferedRows(itr *buffer.Iterator) ([]data.Row, error) {
	var rows []data.Row
	for itr.Advance() {
		rows = append(rows, itr.Row())
	}

	return rows, itr.Err()
}

type closer interface {
	Close() error
}

func closeWith(c closer, err *error) {
	if cErr := c.Close(); cErr != nil && *err == nil {
		*err = errors.WithPrevious(cErr, `cannot close merge iterator`)
	}
}
