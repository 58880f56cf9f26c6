/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

// Package file is an append only, file backed backend used to spill join buffers to disk.
// Values are appended to a single data file, only the key index lives in memory.
package file

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/backend"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

const headerSize = 8

type config struct {
	Dir             string
	SyncWrites      bool
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig() *config {
	conf := new(config)
	conf.parse()

	return conf
}

func (c *config) parse() {
	if c.Dir == `` {
		c.Dir = os.TempDir()
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type entry struct {
	offset int64
	size   int
}

type fileBackend struct {
	name    string
	path    string
	file    *os.File
	sync    bool
	size    int64
	index   map[string]entry
	mu      *sync.RWMutex
	logger  log.Logger
	metrics struct {
		readLatency   metrics.Observer
		updateLatency metrics.Observer
		fileSize      metrics.Gauge
	}
}

func Builder(config *config) backend.Builder {
	config.parse()
	return func(name string) (backend.Backend, error) {
		return NewFileBackend(name, config)
	}
}

func NewFileBackend(name string, config *config) (backend.Backend, error) {
	config.parse()

	if err := os.MkdirAll(config.Dir, os.ModePerm); err != nil {
		return nil, errors.WithPrevious(err, `cannot create spill dir`)
	}

	f, err := os.CreateTemp(config.Dir, name+`-*.spill`)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot create spill file for [%s]`, name))
	}

	b := &fileBackend{
		name:   name,
		path:   f.Name(),
		file:   f,
		sync:   config.SyncWrites,
		index:  make(map[string]entry),
		mu:     new(sync.RWMutex),
		logger: config.Logger.NewLog(log.Prefixed(`file-backend`)),
	}

	labels := []string{`name`, `type`}
	b.metrics.readLatency = config.MetricsReporter.Observer(metrics.MetricConf{Path: `backend_read_latency_microseconds`, Labels: labels})
	b.metrics.updateLatency = config.MetricsReporter.Observer(metrics.MetricConf{Path: `backend_update_latency_microseconds`, Labels: labels})
	b.metrics.fileSize = config.MetricsReporter.Gauge(metrics.MetricConf{Path: `backend_file_size_bytes`, Labels: labels})

	b.logger.Debug(fmt.Sprintf(`spill file %s created`, b.path))

	return b, nil
}

func (b *fileBackend) Name() string {
	return b.name
}

func (b *fileBackend) String() string {
	return `file`
}

func (b *fileBackend) Persistent() bool {
	return true
}

func (b *fileBackend) labels() map[string]string {
	return map[string]string{`name`: b.name, `type`: `file`}
}

// Set appends [key len][value len][key][value] to the data file. Older values of the
// key stay in the file until the index is emptied by Delete or the backend is destroyed.
func (b *fileBackend) Set(key []byte, value []byte) error {
	defer func(begin time.Time) {
		b.metrics.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), b.labels())
	}(time.Now())

	rec := make([]byte, headerSize, headerSize+len(key)+len(value))
	binary.LittleEndian.PutUint32(rec[0:], uint32(len(key)))
	binary.LittleEndian.PutUint32(rec[4:], uint32(len(value)))
	rec = append(rec, key...)
	rec = append(rec, value...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file == nil {
		return errors.New(`backend closed`)
	}

	if _, err := b.file.WriteAt(rec, b.size); err != nil {
		return errors.WithPrevious(err, `spill write failed`)
	}

	if b.sync {
		if err := b.file.Sync(); err != nil {
			return errors.WithPrevious(err, `spill sync failed`)
		}
	}

	b.index[string(key)] = entry{offset: b.size, size: len(rec)}
	b.size += int64(len(rec))
	b.metrics.fileSize.Count(float64(b.size), b.labels())

	return nil
}

func (b *fileBackend) Get(key []byte) ([]byte, error) {
	defer func(begin time.Time) {
		b.metrics.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), b.labels())
	}(time.Now())

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.index[string(key)]
	if !ok {
		return nil, nil
	}

	if b.file == nil {
		return nil, errors.New(`backend closed`)
	}

	rec := make([]byte, e.size)
	if _, err := b.file.ReadAt(rec, e.offset); err != nil {
		return nil, errors.WithPrevious(err, `spill read failed`)
	}

	kLen := int(binary.LittleEndian.Uint32(rec[0:]))
	vLen := int(binary.LittleEndian.Uint32(rec[4:]))
	if headerSize+kLen+vLen != e.size || string(rec[headerSize:headerSize+kLen]) != string(key) {
		return nil, errdefs.DataCorruption(`spill record at offset %d of %s is inconsistent`, e.offset, b.path)
	}

	return rec[headerSize+kLen:], nil
}

func (b *fileBackend) snapshot() [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([][]byte, 0, len(b.index))
	for k := range b.index {
		keys = append(keys, []byte(k))
	}

	return keys
}

func (b *fileBackend) RangeIterator(fromKey []byte, toKey []byte) backend.Iterator {
	return backend.NewSortedIterator(backend.RangeKeys(b.snapshot(), fromKey, toKey), b.Get)
}

func (b *fileBackend) Iterator() backend.Iterator {
	return backend.NewSortedIterator(b.snapshot(), b.Get)
}

// Delete drops the key from the index. Deleting the last live key truncates the data file.
func (b *fileBackend) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.index, string(key))

	if len(b.index) > 0 || b.size == 0 || b.file == nil {
		return nil
	}

	if err := b.file.Truncate(0); err != nil {
		return errors.WithPrevious(err, `spill truncate failed`)
	}

	b.size = 0
	b.metrics.fileSize.Count(0, b.labels())

	return nil
}

func (b *fileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file == nil {
		return nil
	}

	err := b.file.Close()
	b.file = nil

	return err
}

// Destroy closes and removes the data file.
func (b *fileBackend) Destroy() error {
	if err := b.Close(); err != nil {
		return errors.WithPrevious(err, `cannot close spill file`)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = make(map[string]entry)
	b.size = 0

	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return errors.WithPrevious(err, `cannot remove spill file`)
	}

	b.logger.Debug(fmt.Sprintf(`spill file %s removed`, b.path))

	return nil
}
