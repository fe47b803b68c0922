package obs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// TelemetryConfig controls whether spans are exported anywhere, or kept
// as in-process no-ops.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// InitOTel configures a tracer provider. When cfg.OTLPEndpoint is empty
// no tracer provider is installed: spans come from OTel's global no-op
// tracer, so they record no attributes and are never exported. This
// keeps the pipeline free of any hard dependency on a running collector.
func InitOTel(ctx context.Context, cfg TelemetryConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	name := cfg.ServiceName
	if name == "" {
		name = "ai-briefing"
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(name)),
	)
	if err != nil {
		return noop, fmt.Errorf("init resource: %w", err)
	}

	// The meter provider is installed unconditionally: the LLM client
	// reports token counts as OTel instruments via RecordTokenAttributes
	// regardless of whether a collector is configured.
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	if cfg.OTLPEndpoint == "" {
		return func(shutdownCtx context.Context) error { return mp.Shutdown(shutdownCtx) }, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return noop, fmt.Errorf("init trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}, nil
}
