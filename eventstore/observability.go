package eventstore

import (
	"context"
	"time"
)

// Logger receives one entry per Service operation (Create, Get, Update, Delete, List, Total) and
// the backends' query logs. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger is the ctx-carrying variant of Logger. When set it is preferred, so a log bridge
// can attach the active trace and span ids to each record operation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector gets operation durations and call counters, plus the record total and List page sizes
// as plain values. Service metrics are labeled by "operation", postgresengine metrics by "unit".
// Failures add an "error_type" label.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector is a MetricsCollector whose measurements can be tied to the caller's ctx,
// for exemplars or trace correlation. Its ctx methods win over the plain ones when implemented.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// TracingCollector opens one span per Service operation and one per postgresengine unit of work.
// oteladapters.TracingCollector is the OpenTelemetry implementation.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// SpanContext is an open span as handed out by TracingCollector.StartSpan.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}
