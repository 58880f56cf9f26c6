/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package stream

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/encoding"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// timeDomain supplies row times, operator time and timers to the join.
type timeDomain interface {
	domain() TimeDomain
	updateOperatorTime() int64
	rowTime(side Side, row data.Row) (int64, error)
	registerTimer(key string, cleanupTime int64)
}

type entry struct {
	row     data.Row
	emitted bool
}

// keyState holds the cached rows of one key, bucketed by row time, and the cleanup timer
// of each side's cache.
type keyState struct {
	caches   [2]map[int64][]*entry
	timers   [2]int64
	hasTimer [2]bool
}

func newKeyState() *keyState {
	return &keyState{
		caches: [2]map[int64][]*entry{
			make(map[int64][]*entry),
			make(map[int64][]*entry),
		},
	}
}

func (s *keyState) empty() bool {
	return len(s.caches[Left]) == 0 && len(s.caches[Right]) == 0 && !s.hasTimer[Left] && !s.hasTimer[Right]
}

// TimeBoundedStreamJoin joins two unbounded inputs on key equality and a time bound. Rows are
// cached per key until no future row can join them, every pair is emitted exactly once as soon
// as both rows are known. Row events and timer events must come from the same goroutine.
type TimeBoundedStreamJoin struct {
	id                 uuid.UUID
	conf               *Config
	times              timeDomain
	keyEncoder         encoding.Encoder
	relativeSize       [2]int64
	minCleanUpInterval int64
	operatorTime       [2]int64
	expirationTime     [2]int64
	states             map[string]*keyState
	stats              gometrics.Registry
	logger             log.Logger
	metrics            struct {
		pairs   metrics.Counter
		late    metrics.Counter
		expired metrics.Counter
		latency metrics.Observer
	}
	counters struct {
		rows     [2]gometrics.Counter
		cached   [2]gometrics.Counter
		pairs    gometrics.Counter
		padded   gometrics.Counter
		late     gometrics.Counter
		filtered gometrics.Counter
		expired  gometrics.Counter
		timers   gometrics.Counter
	}
}

func newTimeBoundedStreamJoin(conf *Config, times timeDomain) (*TimeBoundedStreamJoin, error) {
	conf.parse()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	j := &TimeBoundedStreamJoin{
		id:         uuid.New(),
		conf:       conf,
		times:      times,
		keyEncoder: encoding.NewRowEncoder(),
		relativeSize: [2]int64{
			Left:  -conf.LowerBound,
			Right: conf.UpperBound,
		},
		expirationTime: [2]int64{math.MinInt64, math.MinInt64},
		states:         make(map[string]*keyState),
		stats:          gometrics.NewRegistry(),
		logger:         conf.Logger.NewLog(log.Prefixed(conf.Name)),
	}
	j.minCleanUpInterval = (j.relativeSize[Left] + j.relativeSize[Right]) / 2

	labels := []string{`join`}
	j.metrics.pairs = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_stream_emitted_pairs`, Labels: []string{`join`, `padded`}})
	j.metrics.late = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_stream_late_rows`, Labels: []string{`join`, `side`}})
	j.metrics.expired = conf.MetricsReporter.Counter(metrics.MetricConf{Path: `k_join_stream_expired_rows`, Labels: []string{`join`, `side`}})
	j.metrics.latency = conf.MetricsReporter.Observer(metrics.MetricConf{Path: `k_join_stream_process_latency_microseconds`, Labels: labels})

	for _, side := range []Side{Left, Right} {
		j.counters.rows[side] = gometrics.GetOrRegisterCounter(`rows.`+side.String(), j.stats)
		j.counters.cached[side] = gometrics.GetOrRegisterCounter(`state.rows.`+side.String(), j.stats)
	}
	j.counters.pairs = gometrics.GetOrRegisterCounter(`pairs.emitted`, j.stats)
	j.counters.padded = gometrics.GetOrRegisterCounter(`pairs.padded`, j.stats)
	j.counters.late = gometrics.GetOrRegisterCounter(`rows.late`, j.stats)
	j.counters.filtered = gometrics.GetOrRegisterCounter(`rows.filtered`, j.stats)
	j.counters.expired = gometrics.GetOrRegisterCounter(`rows.expired`, j.stats)
	j.counters.timers = gometrics.GetOrRegisterCounter(`timers.fired`, j.stats)

	conf.print(times.domain().String())

	return j, nil
}

func (j *TimeBoundedStreamJoin) ID() uuid.UUID {
	return j.id
}

func (j *TimeBoundedStreamJoin) Name() string {
	return j.conf.Name
}

func (j *TimeBoundedStreamJoin) Type() string {
	return j.conf.Type.String()
}

func (j *TimeBoundedStreamJoin) Domain() TimeDomain {
	return j.times.domain()
}

// LeftRelativeSize is how far a left row may precede its right partner.
func (j *TimeBoundedStreamJoin) LeftRelativeSize() int64 {
	return j.relativeSize[Left]
}

// RightRelativeSize is how far a right row may follow its left partner.
func (j *TimeBoundedStreamJoin) RightRelativeSize() int64 {
	return j.relativeSize[Right]
}

func (j *TimeBoundedStreamJoin) MinCleanUpInterval() int64 {
	return j.minCleanUpInterval
}

// MaxOutputDelay is the longest a row is held before its output is complete. Downstream
// watermarks must be held back by this much.
func (j *TimeBoundedStreamJoin) MaxOutputDelay() int64 {
	size := j.relativeSize[Left]
	if j.relativeSize[Right] > size {
		size = j.relativeSize[Right]
	}

	return size + j.conf.AllowedLateness
}

// Stats is the in process view of the join's counters.
func (j *TimeBoundedStreamJoin) Stats() gometrics.Registry {
	return j.stats
}

// Keys is the number of keys holding state.
func (j *TimeBoundedStreamJoin) Keys() int {
	return len(j.states)
}

// Key encodes the join key of a row of the given side.
func (j *TimeBoundedStreamJoin) Key(side Side, row data.Row) ([]byte, error) {
	return j.keyEncoder.Encode(j.project(side, row))
}

func (j *TimeBoundedStreamJoin) project(side Side, row data.Row) data.Row {
	if side == Right {
		return j.conf.RightKey(row)
	}

	return j.conf.LeftKey(row)
}

func (j *TimeBoundedStreamJoin) ProcessLeft(ctx context.Context, row data.Row) error {
	return j.Process(ctx, Left, row)
}

func (j *TimeBoundedStreamJoin) ProcessRight(ctx context.Context, row data.Row) error {
	return j.Process(ctx, Right, row)
}

// Process joins a row against the cached rows of the other side and caches it while rows of
// the other side may still arrive for it.
func (j *TimeBoundedStreamJoin) Process(ctx context.Context, side Side, row data.Row) error {
	defer func(begin time.Time) {
		j.metrics.latency.Observe(float64(j.conf.Clock.Now().Sub(begin).Nanoseconds()/1e3), map[string]string{`join`: j.conf.Name})
	}(j.conf.Clock.Now())

	j.updateOperatorTime()

	keyRow := j.project(side, row)
	byt, err := j.keyEncoder.Encode(keyRow)
	if err != nil {
		return errors.WithPrevious(err, `cannot encode join key`)
	}
	key := string(byt)

	rowTime, err := j.times.rowTime(side, row)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot read %s row time`, side))
	}
	j.counters.rows[side].Inc(1)

	ctx = withEventMeta(ctx, &EventMeta{
		ID:           uuid.New(),
		Join:         j.conf.Name,
		Side:         side,
		Timestamp:    rowTime,
		OperatorTime: j.operatorTime[side],
	})

	// rows with a filtered null key never join and are never cached
	if j.conf.FilterNullKeys.AnyNull(keyRow) {
		j.counters.filtered.Inc(1)
		if j.preserves(side) {
			return j.emitPadded(ctx, side, row)
		}
		return nil
	}

	other := side.other()
	lower, upper := j.partnerBounds(side, rowTime)
	state := j.states[key]

	emitted := false
	if state != nil && j.expirationTime[other] < upper {
		j.expirationTime[other] = j.calExpirationTime(j.operatorTime[side], j.retention(other))
		emitted, err = j.joinCached(ctx, side, row, lower, upper, state)
		if err != nil {
			return err
		}
	}

	if j.operatorTime[other] < upper {
		if state == nil {
			state = newKeyState()
			j.states[key] = state
		}

		cache := state.caches[side]
		cache[rowTime] = append(cache[rowTime], &entry{row: row, emitted: emitted})
		j.counters.cached[side].Inc(1)

		if !state.hasTimer[side] {
			j.registerCleanUpTimer(key, state, side, rowTime)
		}

		return nil
	}

	j.counters.late.Inc(1)
	j.metrics.late.Count(1, map[string]string{`join`: j.conf.Name, `side`: side.String()})
	j.logger.Trace(fmt.Sprintf(`%s row at %d is late for operator time %d`, side, rowTime, j.operatorTime[other]))

	if !emitted && j.preserves(side) {
		return j.emitPadded(ctx, side, row)
	}

	return nil
}

// OnTimer removes the expired rows of a key when the timer is the current cleanup timer of
// one of its caches. Stale timers are ignored.
func (j *TimeBoundedStreamJoin) OnTimer(ctx context.Context, key string, timestamp int64) error {
	j.updateOperatorTime()
	j.counters.timers.Inc(1)

	state, ok := j.states[key]
	if !ok {
		return nil
	}

	ctx = withEventMeta(ctx, &EventMeta{
		ID:           uuid.New(),
		Join:         j.conf.Name,
		Timer:        true,
		Timestamp:    timestamp,
		OperatorTime: j.operatorTime[Left],
	})

	for _, side := range []Side{Left, Right} {
		if !state.hasTimer[side] || state.timers[side] != timestamp {
			continue
		}

		j.expirationTime[side] = j.calExpirationTime(j.operatorTime[side], j.retention(side))
		if err := j.removeExpiredRows(ctx, key, state, side); err != nil {
			return err
		}
	}

	if state.empty() {
		delete(j.states, key)
	}

	return nil
}

func (j *TimeBoundedStreamJoin) updateOperatorTime() {
	t := j.times.updateOperatorTime()
	j.operatorTime[Left] = t
	j.operatorTime[Right] = t
}

// partnerBounds is the time range of rows on the other side a row at rowTime joins with.
func (j *TimeBoundedStreamJoin) partnerBounds(side Side, rowTime int64) (int64, int64) {
	return rowTime - j.relativeSize[side], rowTime + j.relativeSize[side.other()]
}

// retention is how long after its own time a row of side can still find partners.
func (j *TimeBoundedStreamJoin) retention(side Side) int64 {
	return j.relativeSize[side.other()]
}

func (j *TimeBoundedStreamJoin) calExpirationTime(operatorTime, relativeSize int64) int64 {
	return operatorTime - relativeSize - j.conf.AllowedLateness - 1
}

func (j *TimeBoundedStreamJoin) registerCleanUpTimer(key string, state *keyState, side Side, rowTime int64) {
	cleanUpTime := rowTime + j.retention(side) + j.minCleanUpInterval + j.conf.AllowedLateness + 1
	j.times.registerTimer(key, cleanUpTime)
	state.timers[side] = cleanUpTime
	state.hasTimer[side] = true
}

func (j *TimeBoundedStreamJoin) joinCached(ctx context.Context, side Side, row data.Row, lower, upper int64, state *keyState) (bool, error) {
	other := side.other()
	cache := state.caches[other]

	emitted := false
	for _, ts := range sortedTimes(cache) {
		entries := cache[ts]
		if ts >= lower && ts <= upper {
			for _, e := range entries {
				l, r := orient(side, row, e.row)
				ok, err := j.conf.Condition(l, r)
				if err != nil {
					return emitted, errors.WithPrevious(err, `join condition failed`)
				}

				if !ok {
					continue
				}

				emitted = true
				e.emitted = true
				if err := j.emit(ctx, l, r); err != nil {
					return emitted, err
				}
			}
		}

		if ts <= j.expirationTime[other] {
			if err := j.expire(ctx, other, entries); err != nil {
				return emitted, err
			}
			delete(cache, ts)
		}
	}

	return emitted, nil
}

func (j *TimeBoundedStreamJoin) removeExpiredRows(ctx context.Context, key string, state *keyState, side Side) error {
	cache := state.caches[side]
	for _, ts := range sortedTimes(cache) {
		if ts > j.expirationTime[side] {
			j.registerCleanUpTimer(key, state, side, ts)
			return nil
		}

		if err := j.expire(ctx, side, cache[ts]); err != nil {
			return err
		}
		delete(cache, ts)
	}

	state.hasTimer[side] = false

	return nil
}

func (j *TimeBoundedStreamJoin) expire(ctx context.Context, side Side, entries []*entry) error {
	j.counters.expired.Inc(int64(len(entries)))
	j.counters.cached[side].Dec(int64(len(entries)))
	j.metrics.expired.Count(float64(len(entries)), map[string]string{`join`: j.conf.Name, `side`: side.String()})

	if !j.preserves(side) {
		return nil
	}

	for _, e := range entries {
		if e.emitted {
			continue
		}

		if err := j.emitPadded(ctx, side, e.row); err != nil {
			return err
		}
	}

	return nil
}

func (j *TimeBoundedStreamJoin) preserves(side Side) bool {
	if side == Left {
		return j.conf.Type.PreservesLeft()
	}

	return j.conf.Type.PreservesRight()
}

func (j *TimeBoundedStreamJoin) emitPadded(ctx context.Context, side Side, row data.Row) error {
	j.counters.padded.Inc(1)
	l, r := orient(side, row, nil)
	return j.emit(ctx, l, r)
}

func (j *TimeBoundedStreamJoin) emit(ctx context.Context, left, right data.Row) error {
	j.counters.pairs.Inc(1)
	j.metrics.pairs.Count(1, map[string]string{`join`: j.conf.Name, `padded`: fmt.Sprint(left == nil || right == nil)})

	if err := j.conf.Collector(ctx, left, right); err != nil {
		return errors.WithPrevious(err, `collector failed`)
	}

	return nil
}

func orient(side Side, row, partner data.Row) (data.Row, data.Row) {
	if side == Left {
		return row, partner
	}

	return partner, row
}

func sortedTimes(cache map[int64][]*entry) []int64 {
	times := make([]int64, 0, len(cache))
	for ts := range cache {
		times = append(times, ts)
	}
	sort.Slice(times, func(a, b int) bool { return times[a] < times[b] })

	return times
}
