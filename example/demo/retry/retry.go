// Package retry retries event store operations that lost a concurrency conflict.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

const (
	// MetricRetryAttempts counts retries by operation, attempt number and error type.
	MetricRetryAttempts = "loadgen_retry_attempts_total"

	// MetricRetryDelay tracks the backoff delay slept before a retry.
	MetricRetryDelay = "loadgen_retry_delay_seconds"

	// MetricRetriesExhausted counts operations that still failed after the last attempt.
	MetricRetriesExhausted = "loadgen_retries_exhausted_total"

	labelOperation      = "operation"
	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

type config struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector eventstore.MetricsCollector
	operation        string
}

// Option configures WithExponentialBackoff.
type Option func(*config) error

// WithExponentialBackoff runs fn until it succeeds, fails with a permanent error or runs out of attempts.
//
// Only eventstore.ErrConcurrencyConflict is retried. Timeouts are not, retrying them under overload makes
// the overload worse.
//
// Default schedule: 0, 10, 20, 40, 80, 160 ms, each plus up to 30% jitter.
func WithExponentialBackoff(ctx context.Context, fn Func, options ...Option) error {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.backoff(attempt)
			cfg.recordDelay(ctx, attempt, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.maxAttempts-1 {
			cfg.incrementCounter(ctx, MetricRetryAttempts, map[string]string{
				labelOperation:     cfg.operation,
				labelAttemptNumber: strconv.Itoa(attempt + 1),
				labelErrorType:     errorType(lastErr),
			})
		}
	}

	cfg.incrementCounter(ctx, MetricRetriesExhausted, map[string]string{
		labelOperation:      cfg.operation,
		labelFinalErrorType: errorType(lastErr),
	})

	return lastErr
}

// backoff returns baseDelay * 2^(attempt-1) plus jitter.
func (c *config) backoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * c.jitterFactor //nolint:gosec // jitter does not need a secure source

	return delay + time.Duration(jitter)
}

func (c *config) recordDelay(ctx context.Context, attempt int, delay time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: c.operation, labelAttemptNumber: strconv.Itoa(attempt)}

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, MetricRetryDelay, delay, labels)
	} else {
		c.metricsCollector.RecordDuration(MetricRetryDelay, delay, labels)
	}
}

func (c *config) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		c.metricsCollector.IncrementCounter(metric, labels)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, eventstore.ErrConcurrencyConflict)
}

func errorType(err error) string {
	if err == nil {
		return "none"
	}

	return eventstore.ClassifyError(err)
}

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry. Each further retry doubles it.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithMetrics records retries, delays and exhaustion labeled with the operation.
func WithMetrics(collector eventstore.MetricsCollector, operation string) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		c.metricsCollector = collector
		c.operation = operation

		return nil
	}
}
