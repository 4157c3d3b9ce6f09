package tracing

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

const instrumentationName = "github.com/platformbuilds/mirador-insights"

// Options configures the OTLP exporter.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
}

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider creates an OTLP/gRPC backed provider and installs it as
// the global provider.
func NewTracerProvider(ctx context.Context, opts Options) (*TracerProvider, error) {
	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	} else {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithTLSCredentials(
			credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
			semconv.ServiceNamespaceKey.String("mirador"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

// InsightsTracer creates spans for the insights pipeline. It resolves the
// global provider lazily, so it records nothing until a provider is
// installed.
type InsightsTracer struct {
	tracer trace.Tracer
}

func NewInsightsTracer() *InsightsTracer {
	return &InsightsTracer{tracer: otel.Tracer(instrumentationName)}
}

// NewInsightsTracerWithProvider is used by tests that inspect spans.
func NewInsightsTracerWithProvider(tp trace.TracerProvider) *InsightsTracer {
	return &InsightsTracer{tracer: tp.Tracer(instrumentationName)}
}

// StartInsightsSpan covers one insights computation.
func (it *InsightsTracer) StartInsightsSpan(ctx context.Context, alertID, template string) (context.Context, trace.Span) {
	return it.tracer.Start(ctx, "alert_insights",
		trace.WithAttributes(
			attribute.String("alert.id", alertID),
			attribute.String("alert.template", template),
			attribute.String("component", "insights-provider"),
		),
	)
}

// StartBoundaryQuerySpan covers one of the min, max or safe_max queries.
func (it *InsightsTracer) StartBoundaryQuerySpan(ctx context.Context, dataset, dataSource, kind string) (context.Context, trace.Span) {
	return it.tracer.Start(ctx, "boundary_query",
		trace.WithAttributes(
			attribute.String("dataset.name", dataset),
			attribute.String("dataset.source", dataSource),
			attribute.String("boundary.kind", kind),
			attribute.String("component", "time-resolver"),
		),
	)
}

// RecordError records an error on a span
func (it *InsightsTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
