package tracing

import (
	"context"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// sampleEnvVar overrides the span sampling ratio. 0 records nothing, 1
// records every turn.
const sampleEnvVar = "DESKMATE_TRACE_SAMPLE"

var setup struct {
	sync.Mutex
	tp *sdktrace.TracerProvider
}

// InitOpenTelemetry installs the process-wide tracer provider. Spans carry
// the service name and are sampled at the ratio from DESKMATE_TRACE_SAMPLE
// (everything when unset). A second call after a successful init is a no-op;
// a failed init may be retried.
func InitOpenTelemetry(serviceName string) error {
	setup.Lock()
	defer setup.Unlock()
	if setup.tp != nil {
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("service.component", "agent-loop"),
		),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
		sdktrace.WithResource(res),
	)
	setup.tp = tp
	otel.SetTracerProvider(tp)

	return nil
}

// sampleRatio reads the environment override. Unparsable values and values
// outside [0, 1] fall back to sampling everything.
func sampleRatio() float64 {
	raw := os.Getenv(sampleEnvVar)
	if raw == "" {
		return 1
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1
	}
	return ratio
}

// ShutdownOpenTelemetry flushes buffered spans. Safe without a prior init.
func ShutdownOpenTelemetry(ctx context.Context) error {
	setup.Lock()
	tp := setup.tp
	setup.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span and keeps the logging trace id aligned with it.
// Session and turn ids already in ctx become span attributes, so all spans
// of one turn group together in a trace backend.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if sid := GetSessionID(ctx); sid != "" {
		attrs = append(attrs, attribute.String("session.id", sid))
	}
	if tid := GetTurnID(ctx); tid != "" {
		attrs = append(attrs, attribute.String("turn.id", tid))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
