package stream

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
	"github.com/tryfix/kjoin/join"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"github.com/zoobzio/clockz"
)

// Config of a time bounded stream join. A right row at tr joins a left row at tl when their
// keys are equal and tl + LowerBound <= tr <= tl + UpperBound.
type Config struct {
	Name            string
	Type            join.Type
	LeftKey         data.Projection
	RightKey        data.Projection
	// FilterNullKeys excludes keys with a null in a flagged field from matching.
	FilterNullKeys  data.NullFilter
	LowerBound      int64
	UpperBound      int64
	AllowedLateness int64
	// LeftTimeIndex and RightTimeIndex locate the int64 event time field of a row.
	// Processing time joins ignore them.
	LeftTimeIndex   int
	RightTimeIndex  int
	Condition       join.Condition
	Collector       join.Collector
	Clock           clockz.Clock
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig() *Config {
	conf := new(Config)
	conf.parse()

	return conf
}

func (c *Config) parse() {
	if c.Name == `` {
		c.Name = `stream-join-` + uuid.New().String()[:8]
	}

	if c.Condition == nil {
		c.Condition = join.AcceptAll
	}

	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

func (c *Config) validate() error {
	if !c.Type.Valid() {
		return errdefs.InvalidArgument(`unsupported join type %d`, int(c.Type))
	}

	if c.LeftKey == nil || c.RightKey == nil {
		return errdefs.InvalidArgument(`[LeftKey] and [RightKey] projections are required`)
	}

	if c.Collector == nil {
		return errdefs.InvalidArgument(`[Collector] cannot be empty`)
	}

	if c.LowerBound > c.UpperBound {
		return errdefs.InvalidArgument(`lower bound %d is greater than upper bound %d`, c.LowerBound, c.UpperBound)
	}

	if c.AllowedLateness < 0 {
		return errdefs.InvalidArgument(`allowed lateness must not be negative, got %d`, c.AllowedLateness)
	}

	if c.LeftTimeIndex < 0 || c.RightTimeIndex < 0 {
		return errdefs.InvalidArgument(`time field indexes must not be negative`)
	}

	return nil
}

func (c *Config) print(domain string) {
	w := new(bytes.Buffer)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{`Config`, c.Name})
	tableData := [][]string{
		{`join.type`, c.Type.String()},
		{`time.domain`, domain},
		{`bound.lower`, fmt.Sprint(c.LowerBound)},
		{`bound.upper`, fmt.Sprint(c.UpperBound)},
		{`allowed_lateness`, fmt.Sprint(c.AllowedLateness)},
		{`time_index.left`, fmt.Sprint(c.LeftTimeIndex)},
		{`time_index.right`, fmt.Sprint(c.RightTimeIndex)},
		{`filter_null_keys`, fmt.Sprint(c.FilterNullKeys)},
	}

	for _, v := range tableData {
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
		table.Append(v)
	}
	table.Render()
	c.Logger.Info("\n" + w.String())
}
