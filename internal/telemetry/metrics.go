package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for rgraph metrics.
const meterName = "github.com/roach88/rgraph"

// Metric names.
const (
	MetricTransitions         = "rgraph.behaviour.transitions"
	MetricTransitionFailures  = "rgraph.behaviour.transition_failures"
	MetricConnectedBehaviours = "rgraph.behaviour.connected"
	MetricPropertyWrites      = "rgraph.property.writes"
	MetricInstances           = "rgraph.instances"
)

// Metrics holds the runtime's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// Transitions counts executed transition steps. Attributes: behaviour,
	// from, to.
	Transitions metric.Int64Counter

	// TransitionFailures counts failed transition steps. Attributes:
	// behaviour, code.
	TransitionFailures metric.Int64Counter

	// ConnectedBehaviours tracks behaviours currently in state connected.
	ConnectedBehaviours metric.Int64UpDownCounter

	// PropertyWrites counts propagating property writes issued through the
	// runtime. Attribute: kind (set, tick).
	PropertyWrites metric.Int64Counter

	// Instances tracks live reactive instances. Attribute: kind.
	Instances metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transitions, err = m.Int64Counter(MetricTransitions,
		metric.WithDescription("Behaviour transition steps executed."),
	); err != nil {
		return nil, err
	}
	if met.TransitionFailures, err = m.Int64Counter(MetricTransitionFailures,
		metric.WithDescription("Behaviour transition steps that failed."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedBehaviours, err = m.Int64UpDownCounter(MetricConnectedBehaviours,
		metric.WithDescription("Behaviours currently connected."),
	); err != nil {
		return nil, err
	}
	if met.PropertyWrites, err = m.Int64Counter(MetricPropertyWrites,
		metric.WithDescription("Propagating property writes."),
	); err != nil {
		return nil, err
	}
	if met.Instances, err = m.Int64UpDownCounter(MetricInstances,
		metric.WithDescription("Live reactive instances."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// DefaultMetrics returns metrics on the global MeterProvider.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		// The global provider only fails on invalid instrument names.
		panic(err)
	}
	return m
}

// RecordTransition records one executed transition step.
func (m *Metrics) RecordTransition(ctx context.Context, behaviour, from, to, failureCode string) {
	attrs := metric.WithAttributes(
		attribute.String("behaviour", behaviour),
		attribute.String("from", from),
		attribute.String("to", to),
	)
	m.Transitions.Add(ctx, 1, attrs)
	if failureCode != "" {
		m.TransitionFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("behaviour", behaviour),
			attribute.String("code", failureCode),
		))
		return
	}
	switch {
	case to == "connected":
		m.ConnectedBehaviours.Add(ctx, 1, metric.WithAttributes(attribute.String("behaviour", behaviour)))
	case from == "connected":
		m.ConnectedBehaviours.Add(ctx, -1, metric.WithAttributes(attribute.String("behaviour", behaviour)))
	}
}

// RecordPropertyWrite counts one propagating write of the given kind.
func (m *Metrics) RecordPropertyWrite(ctx context.Context, kind string) {
	m.PropertyWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordInstances adjusts the live instance gauge for kind by delta.
func (m *Metrics) RecordInstances(ctx context.Context, kind string, delta int64) {
	m.Instances.Add(ctx, delta, metric.WithAttributes(attribute.String("kind", kind)))
}
