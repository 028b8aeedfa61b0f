package runtime

import (
	"log/slog"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/config"
	"github.com/roach88/rgraph/internal/idgen"
	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/telemetry"
)

// DefaultParallelism bounds the instances connected or disconnected at once
// by ConnectAll and DisconnectAll.
const DefaultParallelism = 8

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger of the runtime and its managers.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithMetrics records transitions, property writes and instance counts on m.
// Default: telemetry.DefaultMetrics().
func WithMetrics(m *telemetry.Metrics) Option {
	return func(rt *Runtime) { rt.metrics = m }
}

// WithStore journals transitions in s and enables Snapshot. The caller owns
// s and closes it after the runtime is done.
func WithStore(s *store.Store) Option {
	return func(rt *Runtime) { rt.store = s }
}

// WithIDGenerator sets the generator of new entity ids.
func WithIDGenerator(g idgen.Generator) Option {
	return func(rt *Runtime) { rt.ids = g }
}

// WithClock sets the clock stamping journal entries and snapshot rows.
// Default: a clock resuming after the store's last journal entry.
func WithClock(c *idgen.Clock) Option {
	return func(rt *Runtime) { rt.clock = c }
}

// WithAutoConnect controls whether behaviours of new instances are
// connected on creation. Default: true.
func WithAutoConnect(enabled bool) Option {
	return func(rt *Runtime) { rt.autoConnect = enabled }
}

// WithObserver adds a transition observer to both behaviour managers.
func WithObserver(obs behaviour.TransitionObserver) Option {
	return func(rt *Runtime) { rt.observers = append(rt.observers, obs) }
}

// WithParallelism sets how many instances ConnectAll and DisconnectAll
// process at once. Values below 1 mean DefaultParallelism.
func WithParallelism(n int) Option {
	return func(rt *Runtime) { rt.parallelism = n }
}

// WithConfig applies the runtime section of a configuration file.
func WithConfig(c config.RuntimeConfig) Option {
	return WithAutoConnect(c.AutoConnect)
}
