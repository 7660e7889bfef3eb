package postgresengine

import (
	"errors"

	"github.com/dharma/events-api-go/eventstore"
)

type (
	// Logger is the plain logger interface, *slog.Logger satisfies it.
	Logger = eventstore.Logger

	// ContextualLogger is the context-aware logger interface for trace correlation.
	ContextualLogger = eventstore.ContextualLogger

	// MetricsCollector receives unit and statement metrics.
	MetricsCollector = eventstore.MetricsCollector

	// TracingCollector receives one span per unit of work.
	TracingCollector = eventstore.TracingCollector
)

// Option defines a functional option for configuring the Backend.
type Option func(*Backend) error

// errNilIDGenerator is returned by WithIDGenerator(nil).
var errNilIDGenerator = errors.New("id generator must not be nil")

// WithTableNames overrides the names of the records, index, and counters tables.
func WithTableNames(records, index, counters string) Option {
	return func(b *Backend) error {
		if records == "" || index == "" || counters == "" {
			return eventstore.ErrEmptyTableName
		}

		b.recordsTableName = records
		b.indexTableName = index
		b.countersTableName = counters

		return nil
	}
}

// WithIDGenerator replaces the default UUIDv7 id generator.
func WithIDGenerator(generator IDGenerator) Option {
	return func(b *Backend) error {
		if generator == nil {
			return errNilIDGenerator
		}

		b.newID = generator

		return nil
	}
}

// WithLogger sets the logger for the Backend.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: committed units of work with their statement count
// Warn level: non-critical issues like rollback or cleanup failures
// Error level: failures to begin or commit a transaction.
func WithLogger(logger Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Backend.
// It receives the same messages as the Logger, with the unit's context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(b *Backend) error {
		b.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Backend.
func WithMetrics(collector MetricsCollector) Option {
	return func(b *Backend) error {
		b.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Backend.
func WithTracing(collector TracingCollector) Option {
	return func(b *Backend) error {
		b.tracingCollector = collector
		return nil
	}
}
