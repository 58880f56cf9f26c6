/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"sync"
	"time"

	"github.com/tryfix/kjoin/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type config struct {
	MetricsReporter metrics.Reporter
	Logger          log.Logger
}

func NewConfig() *config {
	conf := new(config)
	conf.parse()

	return conf
}

func (c *config) parse() {
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type memory struct {
	name    string
	records map[string][]byte
	mu      *sync.RWMutex
	logger  log.Logger
	metrics struct {
		readLatency   metrics.Observer
		updateLatency metrics.Observer
		deleteLatency metrics.Observer
		storageSize   metrics.Gauge
	}
}

func Builder(config *config) backend.Builder {
	config.parse()
	return func(name string) (backend backend.Backend, err error) {
		return NewMemoryBackend(name, config.Logger, config.MetricsReporter), nil
	}
}

func NewMemoryBackend(name string, logger log.Logger, reporter metrics.Reporter) backend.Backend {
	m := &memory{
		name:    name,
		logger:  logger,
		records: make(map[string][]byte),
		mu:      new(sync.RWMutex),
	}

	labels := []string{`name`, `type`}
	m.metrics.readLatency = reporter.Observer(metrics.MetricConf{Path: `backend_read_latency_microseconds`, Labels: labels})
	m.metrics.updateLatency = reporter.Observer(metrics.MetricConf{Path: `backend_update_latency_microseconds`, Labels: labels})
	m.metrics.storageSize = reporter.Gauge(metrics.MetricConf{Path: `backend_storage_size`, Labels: labels})
	m.metrics.deleteLatency = reporter.Observer(metrics.MetricConf{Path: `backend_delete_latency_microseconds`, Labels: labels})

	return m
}

func (m *memory) Name() string {
	return m.name
}

func (m *memory) String() string {
	return `memory`
}

func (m *memory) Persistent() bool {
	return false
}

func (m *memory) labels() map[string]string {
	return map[string]string{`name`: m.name, `type`: `memory`}
}

func (m *memory) Set(key []byte, value []byte) error {
	defer func(begin time.Time) {
		m.metrics.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.mu.Lock()
	m.records[string(key)] = value
	size := len(m.records)
	m.mu.Unlock()

	m.metrics.storageSize.Count(float64(size), m.labels())

	return nil
}

func (m *memory) Get(key []byte) ([]byte, error) {
	defer func(begin time.Time) {
		m.metrics.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[string(key)]
	if !ok {
		return nil, nil
	}

	return record, nil
}

func (m *memory) snapshot() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([][]byte, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, []byte(k))
	}

	return keys
}

func (m *memory) RangeIterator(fromKey []byte, toKey []byte) backend.Iterator {
	return backend.NewSortedIterator(backend.RangeKeys(m.snapshot(), fromKey, toKey), m.Get)
}

func (m *memory) Iterator() backend.Iterator {
	return backend.NewSortedIterator(m.snapshot(), m.Get)
}

func (m *memory) Delete(key []byte) error {
	defer func(begin time.Time) {
		m.metrics.deleteLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.mu.Lock()
	delete(m.records, string(key))
	size := len(m.records)
	m.mu.Unlock()

	m.metrics.storageSize.Count(float64(size), m.labels())

	return nil
}

func (m *memory) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string][]byte)

	return nil
}

func (m *memory) Close() error {
	m.logger.Debug(`k-join.backend.memory`, `closing `+m.name)
	return m.Destroy()
}
