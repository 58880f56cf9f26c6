package stream

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// ErrPoolStopped is returned for events sent to a stopped pool.
var ErrPoolStopped = errors.New(`pool stopped`)

type eventKind int

const (
	rowEvent eventKind = iota
	watermarkEvent
	tickEvent
)

type event struct {
	ctx       context.Context
	kind      eventKind
	side      Side
	row       data.Row
	watermark int64
}

type PoolConfig struct {
	Partitions int
	BufferSize int
	// Registry, when set, gets every partition's join registered as <name>-<partition>.
	Registry        Registry
	Driver          *DriverConfig
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func (c *PoolConfig) parse() {
	if c.Partitions == 0 {
		c.Partitions = 1
	}

	if c.Driver == nil {
		c.Driver = new(DriverConfig)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

// Pool runs one Driver per partition, each on its own goroutine. Rows are routed by the hash
// of their join key so every key is owned by exactly one partition, watermarks and processing
// time ticks go to every partition. Collectors of pooled joins must be safe for concurrent use.
type Pool struct {
	id         string
	partitions []*partition
	logger     log.Logger
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
}

type partition struct {
	id          int
	pool        *Pool
	driver      *Driver
	events      chan event
	logger      log.Logger
	bufferUsage metrics.Gauge
	failures    metrics.Counter
}

func NewPool(id string, build Builder, conf *PoolConfig) (*Pool, error) {
	conf.parse()
	if conf.Partitions < 0 || conf.BufferSize < 0 {
		return nil, errdefs.InvalidArgument(`partitions and buffer size must not be negative`)
	}

	p := &Pool{
		id:         id,
		partitions: make([]*partition, conf.Partitions),
		logger:     conf.Logger.NewLog(log.Prefixed(`pool-` + id)),
	}

	bufferUsage := conf.MetricsReporter.Gauge(metrics.MetricConf{
		Path:   `k_join_pool_partition_buffer`,
		Labels: []string{`pool_id`, `partition`},
	})
	failures := conf.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `k_join_pool_partition_failures`,
		Labels: []string{`pool_id`, `partition`},
	})

	for i := range p.partitions {
		driver, err := NewDriver(build, conf.Driver)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot build partition %d`, i))
		}

		if conf.Registry != nil {
			name := fmt.Sprintf(`%s-%d`, driver.Join().Name(), i)
			if err := conf.Registry.Register(name, driver.Join()); err != nil {
				return nil, err
			}
		}

		p.partitions[i] = &partition{
			id:          i,
			pool:        p,
			driver:      driver,
			events:      make(chan event, conf.BufferSize),
			logger:      p.logger.NewLog(log.Prefixed(fmt.Sprintf(`partition-%d`, i))),
			bufferUsage: bufferUsage,
			failures:    failures,
		}
	}

	for _, pt := range p.partitions {
		p.wg.Add(1)
		go pt.start()
	}

	return p, nil
}

// Process routes a row to the partition owning its key.
func (p *Pool) Process(ctx context.Context, side Side, row data.Row) error {
	pt, err := p.partition(side, row)
	if err != nil {
		return err
	}

	return p.send([]*partition{pt}, event{ctx: ctx, kind: rowEvent, side: side, row: row})
}

// AdvanceWatermark broadcasts an input watermark to every partition.
func (p *Pool) AdvanceWatermark(ctx context.Context, side Side, watermark int64) error {
	return p.send(p.partitions, event{ctx: ctx, kind: watermarkEvent, side: side, watermark: watermark})
}

// AdvanceProcessingTime asks every partition to fire its due processing time timers.
func (p *Pool) AdvanceProcessingTime(ctx context.Context) error {
	return p.send(p.partitions, event{ctx: ctx, kind: tickEvent})
}

func (p *Pool) send(partitions []*partition, ev event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	for _, pt := range partitions {
		pt.events <- ev
	}

	return nil
}

// OutputWatermark is the minimum output watermark over all partitions.
func (p *Pool) OutputWatermark() int64 {
	wm := int64(math.MaxInt64)
	for _, pt := range p.partitions {
		if w := pt.driver.OutputWatermark(); w < wm {
			wm = w
		}
	}

	return wm
}

func (p *Pool) Partitions() int {
	return len(p.partitions)
}

// Stop drains every partition and waits for them to finish. Events sent afterwards fail
// with ErrPoolStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}

	p.stopped = true
	for _, pt := range p.partitions {
		close(pt.events)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info(`pool stopped`)
}

func (p *Pool) partition(side Side, row data.Row) (*partition, error) {
	key, err := p.partitions[0].driver.Join().Key(side, row)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot encode routing key`)
	}

	hasher := fnv.New32a()
	if _, err := hasher.Write(key); err != nil {
		return nil, err
	}

	return p.partitions[int(hasher.Sum32()%uint32(len(p.partitions)))], nil
}

func (pt *partition) start() {
	defer pt.pool.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	labels := map[string]string{`pool_id`: pt.pool.id, `partition`: fmt.Sprint(pt.id)}
	for {
		select {
		case <-ticker.C:
			if cap(pt.events) > 0 {
				pt.bufferUsage.Count((float64(len(pt.events))/float64(cap(pt.events)))*100, labels)
			}
		case ev, ok := <-pt.events:
			if !ok {
				return
			}

			if err := pt.handle(ev); err != nil {
				pt.failures.Count(1, labels)
				pt.logger.ErrorContext(ev.ctx, fmt.Sprintf(`k-join.pool event failed due to %+v`, err))
			}
		}
	}
}

func (pt *partition) handle(ev event) error {
	switch ev.kind {
	case watermarkEvent:
		return pt.driver.AdvanceWatermark(ev.ctx, ev.side, ev.watermark)
	case tickEvent:
		return pt.driver.AdvanceProcessingTime(ev.ctx)
	}

	return pt.driver.Process(ev.ctx, ev.side, ev.row)
}
