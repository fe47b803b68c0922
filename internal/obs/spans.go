package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ai-briefing")

var meter = otel.Meter("ai-briefing")

var tokenCounter, _ = meter.Int64Counter(
	"briefing.llm.tokens",
	metric.WithDescription("LLM tokens consumed, grouped by phase and token kind"),
	metric.WithUnit("{token}"),
)

// StartSpan opens a span for an outbound LLM/image call. Callers must
// call the returned end func exactly once, passing the error (if any)
// the call produced.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// RecordTokenAttributes annotates the current span with usage/cost
// attributes once a call completes, and adds the same counts to the
// briefing.llm.tokens counter so a collector sees per-phase token
// volume even for runs where nobody is inspecting individual spans.
func RecordTokenAttributes(ctx context.Context, phase string, inputTokens, outputTokens, reasoningTokens int64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("briefing.phase", phase),
		attribute.Int64("briefing.tokens.input", inputTokens),
		attribute.Int64("briefing.tokens.output", outputTokens),
		attribute.Int64("briefing.tokens.reasoning", reasoningTokens),
	)
	addTokenCount(ctx, phase, "input", inputTokens)
	addTokenCount(ctx, phase, "output", outputTokens)
	addTokenCount(ctx, phase, "reasoning", reasoningTokens)
}

func addTokenCount(ctx context.Context, phase, kind string, n int64) {
	if n <= 0 {
		return
	}
	tokenCounter.Add(ctx, n, metric.WithAttributes(
		attribute.String("briefing.phase", phase),
		attribute.String("briefing.token_kind", kind),
	))
}
