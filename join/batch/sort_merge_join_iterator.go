/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package batch

import (
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// State of the merge cursor with respect to the current probe row.
type State int

const (
	// NoMatch means the current probe row has no equal key run on the buffered side.
	NoMatch State = iota
	// Buffering means the buffered side is being drained into the match buffer.
	Buffering
	// Matched means the match buffer holds every buffered row equal to the current probe key.
	Matched
	// Exhausted means the probe input has ended.
	Exhausted
)

func (s State) String() string {
	switch s {
	case NoMatch:
		return `NoMatch`
	case Buffering:
		return `Buffering`
	case Matched:
		return `Matched`
	case Exhausted:
		return `Exhausted`
	}

	return fmt.Sprintf(`State(%d)`, int(s))
}

var transitions = map[State][]State{
	NoMatch:   {NoMatch, Buffering, Exhausted},
	Buffering: {Matched},
	Matched:   {NoMatch, Buffering, Matched, Exhausted},
	Exhausted: {Exhausted},
}

// SortMergeJoinIterator walks two key sorted inputs in lock step. Every probe row is consumed
// exactly once and the buffered side is never re-read: each run of equal buffered keys is
// collected into a resettable buffer that stays valid while successive probe rows share the key.
type SortMergeJoinIterator struct {
	conf        *Config
	probe       *cursor
	buffered    *cursor
	matchKey    data.Row
	matchBuffer *buffer.ResettableExternalBuffer
	state       State
	err         error
	logger      log.Logger
	metrics     struct {
		probeRows    metrics.Counter
		matchedRows  metrics.Counter
		bufferedRuns metrics.Counter
	}
}

// NewSortMergeJoinIterator positions the buffered input on its first suitable row.
func NewSortMergeJoinIterator(probe, buffered RowIterator, conf *Config) (*SortMergeJoinIterator, error) {
	conf.parse()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	matchBuffer, err := conf.newBuffer()
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot create match buffer`)
	}

	itr := &SortMergeJoinIterator{
		conf: conf,
		probe: &cursor{
			side:       `probe`,
			input:      probe,
			projection: conf.ProbeProjection,
			comparator: conf.Comparator,
			filter:     conf.FilterNullKeys,
		},
		buffered: &cursor{
			side:       `buffered`,
			input:      buffered,
			projection: conf.BufferedProjection,
			comparator: conf.Comparator,
			filter:     conf.FilterNullKeys,
		},
		matchBuffer: matchBuffer,
		state:       NoMatch,
		logger:      conf.Logger.NewLog(log.Prefixed(`sort-merge-join`)),
	}

	itr.metrics.probeRows = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_merge_probe_rows`})
	itr.metrics.matchedRows = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_merge_matched_probe_rows`})
	itr.metrics.bufferedRuns = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_merge_buffered_runs`})

	if _, err := itr.buffered.nextSuitable(); err != nil {
		itr.matchBuffer.Close()
		return nil, err
	}

	return itr, nil
}

// AdvanceProbe consumes the next probe row and positions the match buffer on its equal key
// run, if there is one. It returns false once the probe input is exhausted.
func (i *SortMergeJoinIterator) AdvanceProbe() (bool, error) {
	if i.err != nil {
		return false, i.err
	}

	ok, err := i.advance()
	if err != nil {
		i.err = err
		return false, err
	}

	return ok, nil
}

// NextInner advances until a probe row with at least one buffered match is found.
// Probe rows without a match are skipped.
func (i *SortMergeJoinIterator) NextInner() (bool, error) {
	for {
		ok, err := i.AdvanceProbe()
		if err != nil || !ok {
			return false, err
		}

		if i.state == Matched {
			return true, nil
		}
	}
}

func (i *SortMergeJoinIterator) advance() (bool, error) {
	ok, err := i.probe.next()
	if err != nil {
		return false, err
	}

	if !ok {
		if err := i.transition(Exhausted); err != nil {
			return false, err
		}
		i.logger.Debug(fmt.Sprintf(`probe input exhausted after %d rows`, i.probe.count))
		return false, nil
	}
	i.metrics.probeRows.Count(1, nil)

	if i.probe.filtered(i.probe.key) {
		return true, i.noMatch()
	}

	// successive probe rows with the same key reuse the loaded run
	if i.matchKey != nil && i.conf.Comparator(i.probe.key, i.matchKey) == 0 {
		i.metrics.matchedRows.Count(1, nil)
		return true, i.transition(Matched)
	}

	for i.buffered.row != nil {
		cmp := i.conf.Comparator(i.probe.key, i.buffered.key)
		if cmp > 0 {
			if _, err := i.buffered.nextSuitable(); err != nil {
				return false, err
			}
			continue
		}

		if cmp < 0 {
			break
		}

		if err := i.bufferMatchingRows(); err != nil {
			return false, err
		}
		i.metrics.matchedRows.Count(1, nil)

		return true, nil
	}

	return true, i.noMatch()
}

// bufferMatchingRows drains the run of buffered rows equal to the current buffered key.
func (i *SortMergeJoinIterator) bufferMatchingRows() error {
	if err := i.transition(Buffering); err != nil {
		return err
	}

	i.matchKey = i.buffered.key
	if err := i.matchBuffer.Reset(); err != nil {
		return errors.WithPrevious(err, `cannot reset match buffer`)
	}

	for {
		if err := i.matchBuffer.Add(i.buffered.row); err != nil {
			return errors.WithPrevious(err, `cannot buffer matching row`)
		}

		ok, err := i.buffered.nextSuitable()
		if err != nil {
			return err
		}

		if !ok || i.conf.Comparator(i.buffered.key, i.matchKey) != 0 {
			break
		}
	}

	i.matchBuffer.Complete()
	i.metrics.bufferedRuns.Count(1, nil)
	i.logger.Trace(fmt.Sprintf(`buffered %d rows for key %s`, i.matchBuffer.Size(), i.matchKey))

	return i.transition(Matched)
}

func (i *SortMergeJoinIterator) noMatch() error {
	return i.transition(NoMatch)
}

// clearMatch drops the loaded run eagerly.
func (i *SortMergeJoinIterator) clearMatch() error {
	i.matchKey = nil
	if err := i.matchBuffer.Reset(); err != nil {
		return errors.WithPrevious(err, `cannot reset match buffer`)
	}

	return nil
}

func (i *SortMergeJoinIterator) transition(to State) error {
	for _, s := range transitions[i.state] {
		if s == to {
			i.state = to
			return nil
		}
	}

	return errdefs.DataCorruption(`illegal merge state transition %s -> %s`, i.state, to)
}

func (i *SortMergeJoinIterator) State() State {
	return i.state
}

// ProbeRow is the probe row consumed by the last advance, nil once exhausted.
func (i *SortMergeJoinIterator) ProbeRow() data.Row {
	return i.probe.row
}

func (i *SortMergeJoinIterator) ProbeKey() data.Row {
	return i.probe.key
}

// MatchKey is the key of the run held by the match buffer.
func (i *SortMergeJoinIterator) MatchKey() data.Row {
	return i.matchKey
}

// Matches iterates the buffered rows equal to the current probe key.
// It is nil when the current probe row has no match.
func (i *SortMergeJoinIterator) Matches() *buffer.Iterator {
	if i.state != Matched {
		return nil
	}

	return i.matchBuffer.NewIterator()
}

// Close releases the match buffer and its spilled pages.
func (i *SortMergeJoinIterator) Close() error {
	i.logger.Debug(fmt.Sprintf(`closing after %d probe rows and %d buffered rows`, i.probe.count, i.buffered.count))
	return i.matchBuffer.Close()
}
