package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "matching"

// StartMatchingSpan starts a span for a matching run against a request.
func StartMatchingSpan(ctx context.Context, requestID string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "matching.run",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("request.attempt", attempt),
		),
	)
}

// StartDecisionSpan starts a span for an agent accept or decline.
func StartDecisionSpan(ctx context.Context, matchID, decision string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "matching.decision",
		trace.WithAttributes(
			attribute.String("match.id", matchID),
			attribute.String("match.decision", decision),
		),
	)
}

// StartSweepSpan starts a span for one expiry sweep pass.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "matching.sweep")
}
