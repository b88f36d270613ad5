package backend

import (
	"context"
	"opacbridge/internal/opac"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens the span of one adapter operation against lib.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, lib opac.Library) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("library.ident", lib.Ident),
		attribute.String("library.api", lib.API),
	))
}

// EndSpan records err on the span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EndStepSpan is EndSpan for workflow steps, the step's status is attached.
func EndStepSpan(span trace.Span, res opac.MultiStepResult, err error) {
	if err == nil {
		span.SetAttributes(attribute.String("step.status", res.Status.String()))
	}
	EndSpan(span, err)
}
