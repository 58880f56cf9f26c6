/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package buffer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/backend"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/encoding"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// ResettableExternalBuffer holds rows in insertion order. Once more than the in memory
// threshold is added, rows are written out as compressed pages to a backend. The buffer is
// owned by a single iterator, it is not safe for concurrent use.
type ResettableExternalBuffer struct {
	id         uuid.UUID
	options    *bufferOptions
	rows       []data.Row
	pages      int
	size       int
	version    int
	completed  bool
	backend    backend.Backend
	compressor *blockCompressor
	logger     log.Logger
	metrics    struct {
		spillLatency metrics.Observer
		spilledPages metrics.Counter
		spilledRows  metrics.Counter
	}
}

func NewResettableExternalBuffer(options ...Options) (*ResettableExternalBuffer, error) {
	opts := new(bufferOptions)
	opts.apply(options...)

	if opts.inMemoryRows < 1 {
		return nil, errdefs.InvalidArgument(`in memory rows must be positive, got %d`, opts.inMemoryRows)
	}

	if opts.pageRows < 1 {
		return nil, errdefs.InvalidArgument(`page rows must be positive, got %d`, opts.pageRows)
	}

	b := &ResettableExternalBuffer{
		id:         uuid.New(),
		options:    opts,
		rows:       make([]data.Row, 0, 16),
		compressor: newBlockCompressor(),
	}
	b.logger = opts.logger.NewLog(log.Prefixed(`buffer-` + b.id.String()[:8]))

	b.metrics.spillLatency = opts.metricsReporter.Observer(metrics.MetricConf{Path: `k_join_buffer_spill_latency_microseconds`})
	b.metrics.spilledPages = opts.metricsReporter.Counter(metrics.MetricConf{Path: `k_join_buffer_spilled_pages`})
	b.metrics.spilledRows = opts.metricsReporter.Counter(metrics.MetricConf{Path: `k_join_buffer_spilled_rows`})

	b.print()

	return b, nil
}

func (b *ResettableExternalBuffer) print() {
	w := new(bytes.Buffer)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{`ResettableExternalBuffer`, b.id.String()})
	tableData := [][]string{
		{`rows.in_memory`, fmt.Sprint(b.options.inMemoryRows)},
		{`rows.per_page`, fmt.Sprint(b.options.pageRows)},
	}

	for _, v := range tableData {
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
		table.Append(v)
	}
	table.Render()
	b.logger.Debug("\n" + w.String())
}

func (b *ResettableExternalBuffer) ID() uuid.UUID {
	return b.id
}

// Add appends a row. Adding to a completed buffer is an error until Reset.
func (b *ResettableExternalBuffer) Add(row data.Row) error {
	if b.completed {
		return errors.New(`cannot add to a completed buffer`)
	}

	b.rows = append(b.rows, row)
	b.size++

	if len(b.rows) >= b.options.inMemoryRows {
		return b.spill()
	}

	return nil
}

// Complete marks the end of the current run. The buffer is read only until Reset.
func (b *ResettableExternalBuffer) Complete() {
	b.completed = true
}

// Reset drops every row, spilled pages included. Iterators created before Reset are invalidated.
func (b *ResettableExternalBuffer) Reset() error {
	for p := 0; p < b.pages; p++ {
		if err := b.backend.Delete(b.pageKey(p)); err != nil {
			return errors.WithPrevious(err, `cannot drop spilled page`)
		}
	}

	b.rows = b.rows[:0]
	b.pages = 0
	b.size = 0
	b.completed = false
	b.version++

	return nil
}

// Size is the number of rows added since the last Reset.
func (b *ResettableExternalBuffer) Size() int {
	return b.size
}

func (b *ResettableExternalBuffer) SpilledPages() int {
	return b.pages
}

// Close releases the spill backend.
func (b *ResettableExternalBuffer) Close() error {
	b.rows = nil
	b.version++
	if b.backend == nil {
		return nil
	}

	err := b.backend.Destroy()
	b.backend = nil
	b.pages = 0
	if err != nil {
		return errors.WithPrevious(err, `cannot destroy spill backend`)
	}

	return nil
}

func (b *ResettableExternalBuffer) pageKey(page int) []byte {
	key := make([]byte, 0, 20)
	key = append(key, b.id[:]...)
	return binary.BigEndian.AppendUint32(key, uint32(page))
}

func (b *ResettableExternalBuffer) spill() error {
	begin := time.Now()
	defer func(t time.Time) {
		b.metrics.spillLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), nil)
	}(begin)

	if b.backend == nil {
		bk, err := b.options.backendBuilder(`buffer-` + b.id.String())
		if err != nil {
			return errors.WithPrevious(err, `cannot build spill backend`)
		}
		b.backend = bk
	}

	pages := 0
	for start := 0; start < len(b.rows); start += b.options.pageRows {
		end := start + b.options.pageRows
		if end > len(b.rows) {
			end = len(b.rows)
		}

		if err := b.writePage(b.rows[start:end]); err != nil {
			return err
		}
		pages++
	}

	b.metrics.spilledPages.Count(float64(pages), nil)
	b.metrics.spilledRows.Count(float64(len(b.rows)), nil)
	b.logger.Trace(fmt.Sprintf(`spilled %d rows into %d pages`, len(b.rows), pages))
	b.rows = b.rows[:0]

	return nil
}

func (b *ResettableExternalBuffer) writePage(rows []data.Row) error {
	page := binary.AppendUvarint(nil, uint64(len(rows)))
	for _, r := range rows {
		var err error
		page, err = encoding.AppendRow(page, r)
		if err != nil {
			return errors.WithPrevious(err, `cannot encode spilled row`)
		}
	}

	block, err := b.compressor.compress(page)
	if err != nil {
		return errors.WithPrevious(err, `cannot compress spilled page`)
	}

	if err := b.backend.Set(b.pageKey(b.pages), block); err != nil {
		return errors.WithPrevious(err, `cannot write spilled page`)
	}
	b.pages++

	return nil
}

func (b *ResettableExternalBuffer) readPage(page int) ([]data.Row, error) {
	block, err := b.backend.Get(b.pageKey(page))
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot read spilled page`)
	}

	if block == nil {
		return nil, errdefs.DataCorruption(`spilled page %d of buffer %s is missing`, page, b.id)
	}

	size, err := originalLength(block)
	if err != nil {
		return nil, err
	}

	if size < 0 {
		return nil, errdefs.DataCorruption(`spilled page %d has negative length`, page)
	}

	raw := make([]byte, size)
	if _, err := decompress(block, raw, 0); err != nil {
		return nil, err
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 || count > uint64(len(raw)) {
		return nil, errdefs.DataCorruption(`invalid row count in page %d`, page)
	}

	rows := make([]data.Row, 0, count)
	raw = raw[n:]
	for i := uint64(0); i < count; i++ {
		r, l, err := encoding.ReadRow(raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
		raw = raw[l:]
	}

	return rows, nil
}

// NewIterator returns an iterator positioned before the first row.
func (b *ResettableExternalBuffer) NewIterator() *Iterator {
	return &Iterator{
		buffer:  b,
		version: b.version,
	}
}

// Rows materialises every row of the buffer.
func (b *ResettableExternalBuffer) Rows() ([]data.Row, error) {
	rows := make([]data.Row, 0, b.size)
	i := b.NewIterator()
	for i.Advance() {
		rows = append(rows, i.Row())
	}

	return rows, i.Err()
}
