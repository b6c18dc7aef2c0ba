// Package telemetry provides OpenTelemetry integration for the bot service,
// including TracerProvider management and an event-to-span listener.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the OTel instrumentation scope name.
	InstrumentationName = "github.com/jagmitg/botservice"

	// DefaultServiceName is used when the configuration leaves it empty.
	DefaultServiceName = "botservice"
)

// Tracer returns the bot service tracer from tp, or from the global provider
// when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// ProviderOption configures NewTracerProvider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	serviceName    string
	serviceVersion string
	attrs          []attribute.KeyValue
	headers        map[string]string
	sampleRatio    float64
	exporter       sdktrace.SpanExporter
}

// WithServiceName sets service.name. Default: DefaultServiceName.
func WithServiceName(name string) ProviderOption {
	return func(c *providerConfig) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithServiceVersion sets service.version.
func WithServiceVersion(v string) ProviderOption {
	return func(c *providerConfig) { c.serviceVersion = v }
}

// WithResourceAttributes adds attributes to the service resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) ProviderOption {
	return func(c *providerConfig) { c.attrs = append(c.attrs, attrs...) }
}

// WithHeaders sends extra headers (collector auth, tenant) with every export.
func WithHeaders(h map[string]string) ProviderOption {
	return func(c *providerConfig) { c.headers = h }
}

// WithSampleRatio samples that fraction of new traces; sampled parents are
// always honoured. Default: 1.
func WithSampleRatio(r float64) ProviderOption {
	return func(c *providerConfig) { c.sampleRatio = r }
}

// WithExporter replaces the OTLP/HTTP exporter.
func WithExporter(e sdktrace.SpanExporter) ProviderOption {
	return func(c *providerConfig) { c.exporter = e }
}

// NewTracerProvider creates a TracerProvider that batches spans to the OTLP/HTTP
// endpoint. The caller must Shutdown the returned provider.
func NewTracerProvider(ctx context.Context, endpoint string, opts ...ProviderOption) (*sdktrace.TracerProvider, error) {
	cfg := providerConfig{serviceName: DefaultServiceName, sampleRatio: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRatio < 0 || cfg.sampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", cfg.sampleRatio)
	}

	exporter := cfg.exporter
	if exporter == nil {
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
		if len(cfg.headers) > 0 {
			httpOpts = append(httpOpts, otlptracehttp.WithHeaders(cfg.headers))
		}
		var err error
		if exporter, err = otlptracehttp.New(ctx, httpOpts...); err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
	}

	attrs := append([]attribute.KeyValue{attribute.String("service.name", cfg.serviceName)}, cfg.attrs...)
	if cfg.serviceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.serviceVersion))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.sampleRatio)),
	), nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// SetupPropagation installs W3C trace context, baggage and AWS X-Ray header
// propagation globally so inbound trace ids parent the turn spans.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	))
}
