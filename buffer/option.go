package buffer

import (
	"github.com/tryfix/kjoin/backend"
	"github.com/tryfix/kjoin/backend/memory"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type bufferOptions struct {
	inMemoryRows    int
	pageRows        int
	backendBuilder  backend.Builder
	logger          log.Logger
	metricsReporter metrics.Reporter
}

type Options func(options *bufferOptions)

func (o *bufferOptions) apply(options ...Options) {
	o.inMemoryRows = 1024
	o.pageRows = 256
	o.logger = log.NewNoopLogger()
	o.metricsReporter = metrics.NoopReporter()
	for _, opt := range options {
		opt(o)
	}

	if o.backendBuilder == nil {
		conf := memory.NewConfig()
		conf.Logger = o.logger
		conf.MetricsReporter = o.metricsReporter
		o.backendBuilder = memory.Builder(conf)
	}
}

// InMemoryRows sets how many rows are held in memory before they are spilled.
func InMemoryRows(n int) Options {
	return func(options *bufferOptions) {
		options.inMemoryRows = n
	}
}

// PageRows sets how many rows are written into one spilled page.
func PageRows(n int) Options {
	return func(options *bufferOptions) {
		options.pageRows = n
	}
}

func WithBackendBuilder(builder backend.Builder) Options {
	return func(options *bufferOptions) {
		options.backendBuilder = builder
	}
}

func WithLogger(logger log.Logger) Options {
	return func(options *bufferOptions) {
		options.logger = logger
	}
}

func WithMetricsReporter(reporter metrics.Reporter) Options {
	return func(options *bufferOptions) {
		options.metricsReporter = reporter
	}
}
