// Package tracing wires OpenTelemetry spans around the orchestrator's
// per-round tool loop and the RPC dispatcher's per-method handling.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures tracing. An empty Endpoint disables export and yields a
// no-op tracer backed by the global otel no-op provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	// Sourced from OTEL_EXPORTER_OTLP_ENDPOINT by cmd/warden; empty disables
	// tracing entirely.
	Endpoint       string
	EnableInsecure bool
}

// Tracer wraps a trace.Tracer with the handful of span constructors this
// service needs.
type Tracer struct {
	tracer trace.Tracer
}

// New builds a Tracer from Config. If Endpoint is empty, or if the exporter
// fails to construct, it falls back to a no-op tracer rather than failing
// startup; tracing is never load-bearing.
func New(cfg Config) (*Tracer, func(context.Context) error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "warden"
	}
	noop := func() (*Tracer, func(context.Context) error) {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, func(context.Context) error { return nil }
	}
	if cfg.Endpoint == "" {
		return noop()
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return noop()
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{tracer: provider.Tracer(cfg.ServiceName)}, provider.Shutdown
}

// StartToolRound traces a single orchestrator tool-calling round.
func (t *Tracer) StartToolRound(ctx context.Context, requestFingerprint string, round int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "orchestrator.tool_round", trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(
		attribute.String("warden.request_fingerprint", requestFingerprint),
		attribute.Int("warden.round", round),
	))
}

// StartRPCDispatch traces a single JSON-RPC method dispatch (internal/rpc).
func (t *Tracer) StartRPCDispatch(ctx context.Context, method string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("rpc.%s", method), trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String("rpc.method", method),
	))
}

// RecordError records an error on the span and marks it failed. A nil err
// is a no-op so callers can defer-call this unconditionally.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
