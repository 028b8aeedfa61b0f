package instance

import (
	"context"
	"log/slog"

	"github.com/roach88/rgraph/internal/idgen"
	"github.com/roach88/rgraph/internal/telemetry"
)

// Option configures a manager.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	ids     idgen.Generator
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), ids: idgen.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the manager's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records live instance counts on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithIDGenerator sets the generator of new entity ids. Default: UUIDv7.
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) { o.ids = g }
}

func (o options) recordInstances(ctx context.Context, kind string, delta int64) {
	if o.metrics != nil {
		o.metrics.RecordInstances(ctx, kind, delta)
	}
}
