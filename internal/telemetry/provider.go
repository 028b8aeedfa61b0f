package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OTel SDK providers.
type ProviderConfig struct {
	// ServiceName is reported in telemetry. Default: "rgraph".
	ServiceName string

	// ServiceVersion is reported in telemetry.
	ServiceVersion string

	// MetricReader receives metrics. When nil, a ManualReader is created and
	// returned in Providers.Reader.
	MetricReader sdkmetric.Reader

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter

	// SetGlobal registers the providers as the global OTel providers.
	SetGlobal bool
}

// Providers holds the SDK providers created by InitProvider.
type Providers struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	Reader         sdkmetric.Reader
}

// Shutdown flushes and closes both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.MeterProvider.Shutdown(ctx),
		p.TracerProvider.Shutdown(ctx),
	)
}

// InitProvider builds the meter and tracer providers for cfg.
func InitProvider(cfg ProviderConfig) (*Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rgraph"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := cfg.MetricReader
	if reader == nil {
		reader = sdkmetric.NewManualReader()
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	if cfg.SetGlobal {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
	}
	return &Providers{MeterProvider: mp, TracerProvider: tp, Reader: reader}, nil
}
