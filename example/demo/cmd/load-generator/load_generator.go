// Package main implements a load generator that drives the event store Service with a configurable
// request rate and mix of operations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/example/demo/config"
	"github.com/dharma/events-api-go/example/demo/retry"
)

const (
	operationCreate = "create"
	operationUpdate = "update"
	operationDelete = "delete"
	operationGet    = "get"
	operationList   = "list"
	operationTotal  = "total"

	// MetricLoadOperations counts the operations issued by the load generator by operation and status.
	MetricLoadOperations = "loadgen_operations_total"

	// MetricLoadDropped counts ticks skipped because max_in_flight operations were already running.
	MetricLoadDropped = "loadgen_dropped_total"

	// MetricKnownRecords records how many created records the load generator is tracking.
	MetricKnownRecords = "loadgen_known_records"

	statusSuccess = "success"
	statusMiss    = "miss"
	statusError   = "error"
)

// LoadGenerator issues Service operations at a fixed rate. Every tick starts one operation,
// chosen at random by the configured weights.
type LoadGenerator struct {
	service          *eventstore.Service
	cfg              config.Load
	retryOptions     []retry.Option
	metricsCollector eventstore.MetricsCollector
	logger           *slog.Logger

	known    *idPool
	inFlight chan struct{}
	wg       sync.WaitGroup

	requests  atomic.Int64
	failures  atomic.Int64
	dropped   atomic.Int64
	startTime time.Time
}

// NewLoadGenerator creates a LoadGenerator for service. metricsCollector may be nil.
func NewLoadGenerator(
	service *eventstore.Service,
	cfg *config.Config,
	metricsCollector eventstore.MetricsCollector,
	logger *slog.Logger,
) *LoadGenerator {

	retryOptions := []retry.Option{
		retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retry.WithBaseDelay(cfg.Retry.BaseDelay),
		retry.WithJitterFactor(cfg.Retry.JitterFactor),
	}

	return &LoadGenerator{
		service:          service,
		cfg:              cfg.Load,
		retryOptions:     retryOptions,
		metricsCollector: metricsCollector,
		logger:           logger,
		known:            &idPool{},
		inFlight:         make(chan struct{}, cfg.Load.MaxInFlight),
	}
}

// Run generates load until ctx ends or the configured duration is over, then waits for the running operations.
func (lg *LoadGenerator) Run(ctx context.Context) error {
	if lg.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lg.cfg.Duration)
		defer cancel()
	}

	lg.startTime = time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(lg.cfg.Rate))
	defer ticker.Stop()

	stats := time.NewTicker(lg.cfg.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.wg.Wait()
			lg.logStats("load generator stopped")

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}

			return ctx.Err()

		case <-stats.C:
			lg.logStats("load generator stats")

		case <-ticker.C:
			select {
			case lg.inFlight <- struct{}{}:
				lg.wg.Add(1)
				go lg.executeOperation(ctx, lg.selectOperation())
			default:
				lg.dropped.Add(1)
				lg.incrementCounter(ctx, MetricLoadDropped, nil)
			}
		}
	}
}

func (lg *LoadGenerator) executeOperation(ctx context.Context, operation string) {
	defer lg.wg.Done()
	defer func() { <-lg.inFlight }()

	// finish the operation even if the run ends meanwhile, it gets its own timeout
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lg.cfg.OperationTimeout)
	defer cancel()

	err := lg.run(opCtx, operation)

	status := statusSuccess
	switch {
	case err == nil:
	case errors.Is(err, eventstore.ErrNotFound), errors.Is(err, errNoKnownRecords):
		// another operation deleted the record first
		status = statusMiss
	default:
		status = statusError
		lg.failures.Add(1)
		lg.logger.WarnContext(opCtx, "load generator operation failed",
			"operation", operation,
			"error", err.Error(),
		)
	}

	lg.requests.Add(1)
	lg.incrementCounter(opCtx, MetricLoadOperations, map[string]string{"operation": operation, "status": status})
}

var errNoKnownRecords = errors.New("no records created yet")

func (lg *LoadGenerator) run(ctx context.Context, operation string) error {
	switch operation {
	case operationCreate:
		return lg.runCreate(ctx)
	case operationUpdate:
		return lg.runUpdate(ctx)
	case operationDelete:
		return lg.runDelete(ctx)
	case operationGet:
		return lg.runGet(ctx)
	case operationList:
		return lg.runList(ctx)
	case operationTotal:
		_, err := lg.service.Total(ctx)
		return err
	default:
		return fmt.Errorf("unknown operation: %s", operation)
	}
}

func (lg *LoadGenerator) runCreate(ctx context.Context) error {
	id, err := lg.service.Create(ctx, lg.randomEvent())
	if err != nil {
		return err
	}

	lg.known.add(id)
	lg.recordValue(ctx, MetricKnownRecords, float64(lg.known.len()))

	return nil
}

func (lg *LoadGenerator) runUpdate(ctx context.Context) error {
	id, ok := lg.known.pick()
	if !ok {
		return errNoKnownRecords
	}

	event := lg.randomEvent()

	err := retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		return lg.service.Update(ctx, id, event)
	}, lg.retryOptionsFor(operationUpdate)...)

	if errors.Is(err, eventstore.ErrNotFound) {
		lg.known.remove(id)
	}

	return err
}

func (lg *LoadGenerator) runDelete(ctx context.Context) error {
	id, ok := lg.known.take()
	if !ok {
		return errNoKnownRecords
	}

	defer func() { lg.recordValue(ctx, MetricKnownRecords, float64(lg.known.len())) }()

	return retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		return lg.service.Delete(ctx, id)
	}, lg.retryOptionsFor(operationDelete)...)
}

func (lg *LoadGenerator) runGet(ctx context.Context) error {
	id, ok := lg.known.pick()
	if !ok {
		return errNoKnownRecords
	}

	_, err := lg.service.Get(ctx, id)
	if errors.Is(err, eventstore.ErrNotFound) {
		lg.known.remove(id)
	}

	return err
}

// runList alternates between an unfiltered listing and one filtered by a random location and visibility.
func (lg *LoadGenerator) runList(ctx context.Context) error {
	startIndex := eventstore.FromBeginning
	if total := lg.known.len(); total > lg.cfg.PageSize {
		startIndex = 1 + rand.Intn(total) //nolint:gosec // load shape does not need a secure source
	}

	if rand.Intn(2) == 0 { //nolint:gosec // load shape does not need a secure source
		_, err := lg.service.List(ctx, eventstore.BuildFilter().MatchingAnyEvent(), startIndex, lg.cfg.PageSize)
		return err
	}

	criteria := strings.Join([]string{
		string(eventstore.FieldLocation) + ":" + lg.randomLocation(),
		string(eventstore.FieldIsPublic) + ":" + strconv.FormatBool(rand.Intn(2) == 0), //nolint:gosec // see above
	}, ";")

	_, err := lg.service.ListByCriteria(ctx, criteria, startIndex, lg.cfg.PageSize)

	return err
}

func (lg *LoadGenerator) retryOptionsFor(operation string) []retry.Option {
	if lg.metricsCollector == nil {
		return lg.retryOptions
	}

	return append(append([]retry.Option{}, lg.retryOptions...), retry.WithMetrics(lg.metricsCollector, operation))
}

// selectOperation chooses an operation based on the configured weights.
func (lg *LoadGenerator) selectOperation() string {
	w := lg.cfg.Weights
	r := rand.Intn(w.Sum()) //nolint:gosec // load shape does not need a secure source

	for _, candidate := range []struct {
		operation string
		weight    int
	}{
		{operationCreate, w.Create},
		{operationUpdate, w.Update},
		{operationDelete, w.Delete},
		{operationGet, w.Get},
		{operationList, w.List},
	} {
		if r < candidate.weight {
			return candidate.operation
		}
		r -= candidate.weight
	}

	return operationTotal
}

func (lg *LoadGenerator) randomEvent() eventstore.Event {
	n := rand.Intn(1000) //nolint:gosec // load shape does not need a secure source

	return eventstore.Event{
		Name:        fmt.Sprintf("Load Test Event %d", n%50),
		Description: "generated by the load generator",
		Location:    lg.randomLocation(),
		DateTime:    time.Now().UTC().Add(time.Duration(n) * time.Hour),
		IsPublic:    eventstore.Bool(n%3 != 0),
		GeoLocation: fmt.Sprintf("%d,%d", n%90, n%180),
		WebURL:      fmt.Sprintf("https://events.example.com/%d", n),
	}
}

func (lg *LoadGenerator) randomLocation() string {
	return lg.cfg.Locations[rand.Intn(len(lg.cfg.Locations))] //nolint:gosec // load shape does not need a secure source
}

func (lg *LoadGenerator) logStats(msg string) {
	duration := time.Since(lg.startTime)
	requests := lg.requests.Load()
	failures := lg.failures.Load()

	var rps, errorRate float64
	if duration > 0 {
		rps = float64(requests) / duration.Seconds()
	}
	if requests > 0 {
		errorRate = float64(failures) / float64(requests) * 100
	}

	lg.logger.Info(msg,
		"requests", requests,
		"elapsed", duration.Truncate(time.Second).String(),
		"requests_per_second", fmt.Sprintf("%.1f", rps),
		"errors", failures,
		"error_rate_percent", fmt.Sprintf("%.1f", errorRate),
		"dropped", lg.dropped.Load(),
		"known_records", lg.known.len(),
	)
}

func (lg *LoadGenerator) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if lg.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := lg.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		lg.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (lg *LoadGenerator) recordValue(ctx context.Context, metric string, value float64) {
	if lg.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := lg.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, nil)
	} else {
		lg.metricsCollector.RecordValue(metric, value, nil)
	}
}

// idPool tracks the ids of records created by this run.
type idPool struct {
	mu  sync.Mutex
	ids []eventstore.ID
}

func (p *idPool) add(id eventstore.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ids = append(p.ids, id)
}

func (p *idPool) pick() (eventstore.ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ids) == 0 {
		return "", false
	}

	return p.ids[rand.Intn(len(p.ids))], true //nolint:gosec // load shape does not need a secure source
}

// take removes and returns a random id.
func (p *idPool) take() (eventstore.ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ids) == 0 {
		return "", false
	}

	i := rand.Intn(len(p.ids)) //nolint:gosec // load shape does not need a secure source
	id := p.ids[i]
	p.ids[i] = p.ids[len(p.ids)-1]
	p.ids = p.ids[:len(p.ids)-1]

	return id, true
}

func (p *idPool) remove(id eventstore.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, known := range p.ids {
		if known == id {
			p.ids[i] = p.ids[len(p.ids)-1]
			p.ids = p.ids[:len(p.ids)-1]

			return
		}
	}
}

func (p *idPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.ids)
}
