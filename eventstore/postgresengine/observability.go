package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/postgresengine/internal/adapters"
)

const (
	// MetricUnitDuration tracks the duration of units of work (OpenTelemetry-compatible).
	MetricUnitDuration = "eventstore_db_unit_duration_seconds"

	// MetricStatementDuration tracks the duration of single SQL statements.
	MetricStatementDuration = "eventstore_db_statement_duration_seconds"

	// MetricDatabaseErrors tracks failed units of work and statements by error type.
	MetricDatabaseErrors = "eventstore_db_errors_total"

	// MetricConcurrencyConflicts tracks serialization failures and deadlocks reported by PostgreSQL.
	MetricConcurrencyConflicts = "eventstore_db_concurrency_conflicts_total"

	statusSuccess = "success"
	statusError   = "error"

	spanNamePrefix      = "postgresengine."
	spanAttrUnit        = "unit"
	spanAttrReplica     = "replica"
	spanAttrStatements  = "statements"
	spanAttrErrorType   = "error_type"
	spanAttrDurationMS  = "duration_ms"
	labelUnit           = "unit"
	labelAction         = "action"
	labelStatus         = "status"
	labelErrorType      = "error_type"
	labelConflictSource = "conflict_source"

	logMsgSQLExecuted     = "executed sql for: "
	logMsgUnitCommitted   = "postgresengine unit committed: "
	logMsgStatementFailed = "sql statement failed: "
	logMsgBeginTxFailed   = "failed to begin database transaction"
	logMsgCommitFailed    = "failed to commit database transaction"
	logMsgRollbackFailed  = "failed to rollback database transaction"
	logMsgCloseRowsFailed = "failed to close database rows"
	logAttrDurationMS     = "duration_ms"
	logAttrQuery          = "query"
	logAttrError          = "error"
	logAttrUnit           = "unit"
	logAttrStatements     = "statements"
)

// unitObserver bundles metrics and tracing for one unit of work.
type unitObserver struct {
	b         *Backend
	unit      string
	span      eventstore.SpanContext
	startedAt time.Time
}

// startUnit starts timing and, if configured, a tracing span for the unit of work.
func (b *Backend) startUnit(ctx context.Context, unit string, options adapters.TxOptions) (*unitObserver, context.Context) {
	observer := &unitObserver{
		b:         b,
		unit:      unit,
		startedAt: time.Now(),
	}

	if b.tracingCollector != nil {
		var span eventstore.SpanContext
		ctx, span = b.tracingCollector.StartSpan(ctx, spanNamePrefix+unit, map[string]string{
			spanAttrUnit:    unit,
			spanAttrReplica: strconv.FormatBool(options.UseReplica),
		})
		observer.span = span
	}

	return observer, ctx
}

// finishSuccess logs the committed unit, records its duration and finishes the span.
func (o *unitObserver) finishSuccess(ctx context.Context, statements int) {
	duration := time.Since(o.startedAt)
	durationMS := toMilliseconds(duration)

	o.b.logInfo(ctx, logMsgUnitCommitted+o.unit, logAttrDurationMS, durationMS, logAttrStatements, statements)
	o.b.recordDuration(ctx, MetricUnitDuration, duration, map[string]string{labelUnit: o.unit, labelStatus: statusSuccess})

	if o.span != nil {
		o.span.SetStatus(statusSuccess)
		o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", durationMS))
		o.b.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
			spanAttrStatements: strconv.Itoa(statements),
		})
	}
}

// finishError records the failed unit and finishes the span with the error type.
// Logging happens where the error is raised, so it is not repeated here.
func (o *unitObserver) finishError(ctx context.Context, err error) {
	duration := time.Since(o.startedAt)
	errorType := eventstore.ClassifyError(err)

	o.b.recordDuration(ctx, MetricUnitDuration, duration, map[string]string{labelUnit: o.unit, labelStatus: statusError})
	o.b.incrementCounter(ctx, MetricDatabaseErrors, map[string]string{labelUnit: o.unit, labelErrorType: errorType})

	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		o.b.incrementCounter(ctx, MetricConcurrencyConflicts, map[string]string{labelConflictSource: o.unit})
	}

	if o.span != nil {
		o.span.SetStatus(statusError)
		o.span.AddAttribute(spanAttrErrorType, errorType)
		o.b.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
	}
}

// observeStatement logs an executed statement at debug level and records its duration.
func (b *Backend) observeStatement(ctx context.Context, sqlQuery string, action string, duration time.Duration, err error) {
	durationMS := toMilliseconds(duration)

	if b.logger != nil {
		b.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationMS, logAttrQuery, sqlQuery)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, durationMS, logAttrQuery, sqlQuery)
	}

	status := statusSuccess
	if err != nil {
		status = statusError
		// misses and conflicts are reported by the unit, only unexpected failures are logged here
		if !isConcurrencyConflict(err) {
			b.logError(ctx, logMsgStatementFailed+action, err, logAttrQuery, sqlQuery)
		}
	}

	b.recordDuration(ctx, MetricStatementDuration, duration, map[string]string{labelAction: action, labelStatus: status})
}

func (b *Backend) logInfo(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (b *Backend) logWarn(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs error information at the error level, the error comes first in the attributes.
func (b *Backend) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if b.logger != nil {
		b.logger.Error(msg, allArgs...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// recordDuration records a duration, context-aware if the collector supports it.
func (b *Backend) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if b.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := b.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		b.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (b *Backend) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if b.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := b.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		b.metricsCollector.IncrementCounter(metric, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
