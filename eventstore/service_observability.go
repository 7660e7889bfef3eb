package eventstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	operationCreate = "create"
	operationGet    = "get"
	operationUpdate = "update"
	operationDelete = "delete"
	operationList   = "list"
	operationTotal  = "total"

	// MetricOperationDuration tracks the duration of Service operations (OpenTelemetry-compatible).
	MetricOperationDuration = "eventstore_operation_duration_seconds"

	// MetricOperationCalls tracks Service operation calls by operation and status.
	MetricOperationCalls = "eventstore_operation_calls_total"

	// MetricOperationErrors tracks failed Service operations by operation and error type.
	MetricOperationErrors = "eventstore_operation_errors_total"

	// MetricListResultSize records the number of events returned by the last List call.
	MetricListResultSize = "eventstore_list_result_size"

	// MetricRecordsTotal records the counter value returned by the last Total call.
	MetricRecordsTotal = "eventstore_records_total"

	statusSuccess = "success"
	statusError   = "error"

	ErrorTypeValidation          = "validation"
	ErrorTypeNotFound            = "not_found"
	ErrorTypeConcurrencyConflict = "concurrency_conflict"
	ErrorTypeCanceled            = "canceled"
	ErrorTypeTimeout             = "timeout"
	ErrorTypeBackend             = "backend"

	spanNamePrefix     = "eventstore."
	spanAttrOperation  = "operation"
	spanAttrErrorType  = "error_type"
	spanAttrDurationMS = "duration_ms"

	logMsgOperation       = "eventstore operation: "
	logMsgOperationFailed = "eventstore operation failed: "
	logAttrError          = "error"
	logAttrErrorType      = "error_type"
	logAttrDurationMS     = "duration_ms"
	logAttrEventID        = "event_id"
	logAttrEventCount     = "event_count"
	logAttrPredicateCount = "predicate_count"
	logAttrStartIndex     = "start_index"
	logAttrPageSize       = "page_size"
	logAttrTotal          = "total"
)

// operationObserver bundles logging, metrics and tracing for one Service operation.
type operationObserver struct {
	s         *Service
	operation string
	span      SpanContext
	startedAt time.Time
}

// startOperation starts timing and, if configured, a tracing span for the operation.
func (s *Service) startOperation(ctx context.Context, operation string) (*operationObserver, context.Context) {
	observer := &operationObserver{
		s:         s,
		operation: operation,
		startedAt: time.Now(),
	}

	if s.tracingCollector != nil {
		var span SpanContext
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{spanAttrOperation: operation})
		observer.span = span
	}

	return observer, ctx
}

// finishSuccess logs at info level, records the duration and finishes the span.
func (o *operationObserver) finishSuccess(ctx context.Context, args ...any) {
	duration := time.Since(o.startedAt)
	durationMS := toMilliseconds(duration)

	logArgs := append([]any{logAttrDurationMS, durationMS}, args...)
	o.s.logInfo(ctx, logMsgOperation+o.operation, logArgs...)

	o.s.recordDuration(ctx, duration, o.operation, statusSuccess)
	o.s.incrementCounter(ctx, MetricOperationCalls, map[string]string{spanAttrOperation: o.operation, "status": statusSuccess})

	if o.span != nil {
		o.span.SetStatus(statusSuccess)
		o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", durationMS))
		o.s.tracingCollector.FinishSpan(o.span, statusSuccess, nil)
	}
}

// finishError logs the failure, records error metrics and finishes the span with the error type.
// Validation failures and misses are expected outcomes and logged at warn level, everything else at error level.
func (o *operationObserver) finishError(ctx context.Context, err error, args ...any) {
	duration := time.Since(o.startedAt)
	errorType := ClassifyError(err)

	logArgs := append([]any{logAttrErrorType, errorType, logAttrError, err.Error()}, args...)

	switch errorType {
	case ErrorTypeValidation, ErrorTypeNotFound:
		o.s.logWarn(ctx, logMsgOperationFailed+o.operation, logArgs...)
	default:
		o.s.logError(ctx, logMsgOperationFailed+o.operation, logArgs...)
	}

	o.s.recordDuration(ctx, duration, o.operation, statusError)
	o.s.incrementCounter(ctx, MetricOperationCalls, map[string]string{spanAttrOperation: o.operation, "status": statusError})
	o.s.incrementCounter(ctx, MetricOperationErrors, map[string]string{spanAttrOperation: o.operation, spanAttrErrorType: errorType})

	if o.span != nil {
		o.span.SetStatus(statusError)
		o.span.AddAttribute(spanAttrErrorType, errorType)
		o.s.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
	}
}

// ClassifyError maps an error returned by the Service to a low-cardinality error type label.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, ErrValidationFailed):
		return ErrorTypeValidation
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return ErrorTypeConcurrencyConflict
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return ErrorTypeBackend
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// recordDuration records the operation duration, context-aware if the collector supports it.
func (s *Service) recordDuration(ctx context.Context, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation, "status": status}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, MetricOperationDuration, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(MetricOperationDuration, duration, labels)
	}
}

func (s *Service) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (s *Service) recordValue(ctx context.Context, metric string, value float64, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		s.metricsCollector.RecordValue(metric, value, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
