package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	attrErrorType = "error_type"
)

// TracingCollector implements eventstore.TracingCollector using the OpenTelemetry tracing API.
// The returned context carries the span, so nested units of work become child spans.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector. The tracer should come from your TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts an internal span with the given attributes.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	spanCtx, span := t.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(toAttributes(attrs)...),
	)

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan adds the final attributes, sets the status and ends the span.
// An error status carries the error_type attribute as its description.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)

	if status == statusError && attrs[attrErrorType] != "" {
		otelSpanCtx.span.SetStatus(codes.Error, attrs[attrErrorType])
	} else {
		otelSpanCtx.SetStatus(status)
	}

	otelSpanCtx.span.End()
}

var _ eventstore.TracingCollector = (*TracingCollector)(nil)

// SpanContext implements eventstore.SpanContext by wrapping an OpenTelemetry span.
type SpanContext struct {
	span trace.Span
}

// SetStatus maps the eventstore status strings to span status codes.
// Unknown strings are kept as a status attribute and leave the code unset.
func (s *SpanContext) SetStatus(status string) {
	switch status {
	case statusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case statusError:
		s.span.SetStatus(codes.Error, "operation failed")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ eventstore.SpanContext = (*SpanContext)(nil)
