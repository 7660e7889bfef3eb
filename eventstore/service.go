package eventstore

import (
	"context"
)

// Service is the composition root of the event record core. It is safe for concurrent use.
//
// Mutations run in one Backend.Update unit each, so the RecordStore, the IndexManager and the Counter
// change together or not at all. Reads run in Backend.View units.
// The Service never retries and imposes no timeouts, callers bound their calls through the context.
type Service struct {
	backend          Backend
	queryEngine      QueryEngine
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring the Service.
type Option func(*Service) error

// WithLogger sets the logger for the Service.
//
// Info level: completed operations with ids, counts and durations
// Warn level: rejected input (validation) and misses (not found)
// Error level: backend failures.
func WithLogger(logger Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, e.g. one with trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Service.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Service.
func WithTracing(collector TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}

// NewService creates a Service on top of the given Backend.
func NewService(backend Backend, options ...Option) (*Service, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	s := &Service{
		backend:     backend,
		queryEngine: NewQueryEngine(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Create validates and stores a new event record and returns its id.
// The location is stored lower-cased, an ID supplied with the event is ignored.
// It fails with ErrValidationFailed before anything is written.
func (s *Service) Create(ctx context.Context, event Event) (ID, error) {
	observer, ctx := s.startOperation(ctx, operationCreate)

	normalized := event.Normalized().WithID("")
	if err := Validate(normalized); err != nil {
		observer.finishError(ctx, err)
		return "", err
	}

	var id ID

	err := s.backend.Update(ctx, func(ctx context.Context, tx Tx) error {
		newID, insertErr := tx.Records().Insert(ctx, normalized)
		if insertErr != nil {
			return insertErr
		}

		if indexErr := tx.Indexes().IndexInsert(ctx, newID, normalized); indexErr != nil {
			return indexErr
		}

		if counterErr := tx.Counter().Increment(ctx); counterErr != nil {
			return counterErr
		}

		id = newID

		return nil
	})

	if err != nil {
		observer.finishError(ctx, err)
		return "", err
	}

	observer.finishSuccess(ctx, logAttrEventID, id.String())

	return id, nil
}

// Get returns the event record with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id ID) (Event, error) {
	observer, ctx := s.startOperation(ctx, operationGet)

	var event Event

	err := s.backend.View(ctx, func(ctx context.Context, tx Tx) error {
		found, getErr := tx.Records().Get(ctx, id)
		if getErr != nil {
			return getErr
		}

		event = found.WithID(id)

		return nil
	})

	if err != nil {
		observer.finishError(ctx, err, logAttrEventID, id.String())
		return Event{}, err
	}

	observer.finishSuccess(ctx, logAttrEventID, id.String())

	return event, nil
}

// Update overwrites the event record with the given id and re-indexes it.
// The id and the creation order stay the same.
// It fails with ErrValidationFailed or ErrNotFound, in both cases nothing is changed.
func (s *Service) Update(ctx context.Context, id ID, event Event) error {
	observer, ctx := s.startOperation(ctx, operationUpdate)

	normalized := event.Normalized().WithID("")
	if err := Validate(normalized); err != nil {
		observer.finishError(ctx, err, logAttrEventID, id.String())
		return err
	}

	err := s.backend.Update(ctx, func(ctx context.Context, tx Tx) error {
		old, getErr := tx.Records().Get(ctx, id)
		if getErr != nil {
			return getErr
		}

		if replaceErr := tx.Records().Replace(ctx, id, normalized); replaceErr != nil {
			return replaceErr
		}

		if removeErr := tx.Indexes().IndexRemove(ctx, id, old); removeErr != nil {
			return removeErr
		}

		return tx.Indexes().IndexInsert(ctx, id, normalized)
	})

	if err != nil {
		observer.finishError(ctx, err, logAttrEventID, id.String())
		return err
	}

	observer.finishSuccess(ctx, logAttrEventID, id.String())

	return nil
}

// Delete removes the event record with the given id together with its index entries.
// It fails with ErrNotFound if the id does not exist (anymore).
func (s *Service) Delete(ctx context.Context, id ID) error {
	observer, ctx := s.startOperation(ctx, operationDelete)

	err := s.backend.Update(ctx, func(ctx context.Context, tx Tx) error {
		old, getErr := tx.Records().Get(ctx, id)
		if getErr != nil {
			return getErr
		}

		if deleteErr := tx.Records().Delete(ctx, id); deleteErr != nil {
			return deleteErr
		}

		if removeErr := tx.Indexes().IndexRemove(ctx, id, old); removeErr != nil {
			return removeErr
		}

		return tx.Counter().Decrement(ctx)
	})

	if err != nil {
		observer.finishError(ctx, err, logAttrEventID, id.String())
		return err
	}

	observer.finishSuccess(ctx, logAttrEventID, id.String())

	return nil
}

// Total returns the number of live event records.
func (s *Service) Total(ctx context.Context) (int64, error) {
	observer, ctx := s.startOperation(ctx, operationTotal)

	var total int64

	err := s.backend.View(ctx, func(ctx context.Context, tx Tx) error {
		value, valueErr := tx.Counter().Value(ctx)
		if valueErr != nil {
			return valueErr
		}

		total = value

		return nil
	})

	if err != nil {
		observer.finishError(ctx, err)
		return 0, err
	}

	s.recordValue(ctx, MetricRecordsTotal, float64(total), operationTotal)
	observer.finishSuccess(ctx, logAttrTotal, total)

	return total, nil
}

// List returns one page of the event records matching the filter, see QueryEngine.List for the
// ordering and pagination rules. Invalid pagination bounds give an empty result, not an error.
func (s *Service) List(ctx context.Context, filter Filter, startIndex int, pageSize int) (Events, error) {
	observer, ctx := s.startOperation(ctx, operationList)

	var events Events

	err := s.backend.View(ctx, func(ctx context.Context, tx Tx) error {
		page, listErr := s.queryEngine.List(ctx, tx, filter, startIndex, pageSize)
		if listErr != nil {
			return listErr
		}

		events = page

		return nil
	})

	if err != nil {
		observer.finishError(ctx, err)
		return make(Events, 0), err
	}

	s.recordValue(ctx, MetricListResultSize, float64(len(events)), operationList)
	observer.finishSuccess(
		ctx,
		logAttrEventCount, len(events),
		logAttrPredicateCount, len(filter.Predicates()),
		logAttrStartIndex, startIndex,
		logAttrPageSize, pageSize,
	)

	return events, nil
}

// ListByCriteria parses the searchCriteria string (see ParseFilter) and lists the matching page.
func (s *Service) ListByCriteria(ctx context.Context, criteria string, startIndex int, pageSize int) (Events, error) {
	return s.List(ctx, ParseFilter(criteria), startIndex, pageSize)
}
