package stream

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/log"
	"github.com/zoobzio/clockz"
)

// Builder creates a join bound to the timer service of one partition.
type Builder func(timers TimerService) (*TimeBoundedStreamJoin, error)

// RowTimeBuilder builds event time joins from copies of conf.
func RowTimeBuilder(conf *Config) Builder {
	return func(timers TimerService) (*TimeBoundedStreamJoin, error) {
		c := *conf
		return NewRowTimeBoundedStreamJoin(&c, timers)
	}
}

// ProcTimeBuilder builds processing time joins from copies of conf.
func ProcTimeBuilder(conf *Config) Builder {
	return func(timers TimerService) (*TimeBoundedStreamJoin, error) {
		c := *conf
		return NewProcTimeBoundedStreamJoin(&c, timers)
	}
}

// WatermarkCollector receives the output watermark of a driver each time it moves forward.
type WatermarkCollector func(ctx context.Context, watermark int64) error

type DriverConfig struct {
	Clock      clockz.Clock
	Watermarks WatermarkCollector
	Logger     log.Logger
}

func (c *DriverConfig) parse() {
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}
}

// Driver is the single partition event loop of a join. It owns the timer service, combines
// the input watermarks into the join's watermark and holds the output watermark back by the
// join's maximum output delay.
type Driver struct {
	join            *TimeBoundedStreamJoin
	timers          *HeapTimerService
	inputWatermarks [2]int64
	outputWatermark int64
	watermarks      WatermarkCollector
	logger          log.Logger
}

func NewDriver(build Builder, conf *DriverConfig) (*Driver, error) {
	if conf == nil {
		conf = new(DriverConfig)
	}
	conf.parse()

	timers := NewHeapTimerService(conf.Clock)
	j, err := build(timers)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot build join`)
	}

	return &Driver{
		join:            j,
		timers:          timers,
		inputWatermarks: [2]int64{math.MinInt64, math.MinInt64},
		outputWatermark: math.MinInt64,
		watermarks:      conf.Watermarks,
		logger:          conf.Logger.NewLog(log.Prefixed(`driver-` + j.Name())),
	}, nil
}

func (d *Driver) Join() *TimeBoundedStreamJoin {
	return d.join
}

func (d *Driver) Timers() *HeapTimerService {
	return d.timers
}

func (d *Driver) Process(ctx context.Context, side Side, row data.Row) error {
	return d.join.Process(ctx, side, row)
}

// AdvanceWatermark records the watermark of one input. The join's watermark is the minimum
// of both inputs, so it only moves once both inputs have reported.
func (d *Driver) AdvanceWatermark(ctx context.Context, side Side, watermark int64) error {
	if watermark <= d.inputWatermarks[side] {
		return nil
	}
	d.inputWatermarks[side] = watermark

	combined := d.inputWatermarks[Left]
	if d.inputWatermarks[Right] < combined {
		combined = d.inputWatermarks[Right]
	}

	if combined <= d.timers.CurrentWatermark() {
		return nil
	}

	d.logger.Trace(fmt.Sprintf(`watermark advanced to %d`, combined))
	if err := d.timers.AdvanceWatermark(combined, d.fire(ctx)); err != nil {
		return err
	}

	return d.emitWatermark(ctx, combined)
}

// AdvanceProcessingTime fires the processing time timers that are due.
func (d *Driver) AdvanceProcessingTime(ctx context.Context) error {
	return d.timers.AdvanceProcessingTime(d.fire(ctx))
}

func (d *Driver) fire(ctx context.Context) func(Timer) error {
	return func(t Timer) error {
		if err := d.join.OnTimer(ctx, t.Key, t.Timestamp); err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`timer at %d failed`, t.Timestamp))
		}
		return nil
	}
}

func (d *Driver) emitWatermark(ctx context.Context, watermark int64) error {
	delay := d.join.MaxOutputDelay()
	if delay > 0 && watermark < math.MinInt64+delay {
		return nil
	}

	out := watermark - delay
	if out <= atomic.LoadInt64(&d.outputWatermark) {
		return nil
	}
	atomic.StoreInt64(&d.outputWatermark, out)

	if d.watermarks == nil {
		return nil
	}

	return d.watermarks(ctx, out)
}

// OutputWatermark is the last watermark emitted downstream, math.MinInt64 before the first.
// It is safe to read from other goroutines.
func (d *Driver) OutputWatermark() int64 {
	return atomic.LoadInt64(&d.outputWatermark)
}
