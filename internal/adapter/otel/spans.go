package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "settingsd"

// StartBusinessSpan starts a span for an operation on a business's settings.
func StartBusinessSpan(ctx context.Context, op, businessID, actorID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "settings."+op,
		trace.WithAttributes(
			attribute.String("business.id", businessID),
			attribute.String("actor.id", actorID),
		),
	)
}

// StartRepSpan starts a span for an operation on a representative's settings.
func StartRepSpan(ctx context.Context, op, repID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "settings."+op,
		trace.WithAttributes(attribute.String("rep.id", repID)),
	)
}

// StartExpiryPassSpan starts a span for one pass over lapsed DnD windows.
func StartExpiryPassSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dnd.expiry_pass")
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
