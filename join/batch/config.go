package batch

import (
	"bytes"

	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/kjoin/buffer"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/kjoin/util"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// Config of a merge join iterator. The probe side is the input iterated row by row,
// the buffered side is the one whose equal key runs are collected into the match buffer.
type Config struct {
	ProbeProjection    data.Projection
	BufferedProjection data.Projection
	Comparator         data.RecordComparator
	// FilterNullKeys excludes keys with a null in a flagged field from matching.
	FilterNullKeys  data.NullFilter
	BufferOptions   []buffer.Options
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig() *Config {
	conf := new(Config)
	conf.parse()

	return conf
}

func (c *Config) parse() {
	if c.Comparator == nil {
		c.Comparator = data.NaturalComparator
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

func (c *Config) validate() error {
	if c.ProbeProjection == nil {
		return errdefs.InvalidArgument(`[ProbeProjection] cannot be empty`)
	}

	if c.BufferedProjection == nil {
		return errdefs.InvalidArgument(`[BufferedProjection] cannot be empty`)
	}

	return nil
}

// copyWith returns a copy of the config keyed by the given projections.
func (c *Config) copyWith(probe, buffered data.Projection) *Config {
	conf := *c
	conf.ProbeProjection = probe
	conf.BufferedProjection = buffered

	return &conf
}

func (c *Config) newBuffer() (*buffer.ResettableExternalBuffer, error) {
	opts := append([]buffer.Options{
		buffer.WithLogger(c.Logger),
		buffer.WithMetricsReporter(c.MetricsReporter),
	}, c.BufferOptions...)

	return buffer.NewResettableExternalBuffer(opts...)
}

func (c *Config) String() string {
	w := new(bytes.Buffer)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{`Config`, `Value`})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.AppendBulk(util.Flatten(`merge`, c))
	table.Render()

	return w.String()
}
