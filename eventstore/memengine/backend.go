package memengine

import (
	"context"
	"errors"
	"sync"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	logMsgUnitRolledBack = "memengine: unit of work rolled back"
	logAttrUndoSteps     = "undo_steps"
	logAttrError         = "error"
)

// IDGenerator produces fresh record ids.
type IDGenerator func() (eventstore.ID, error)

// storedRecord is a record plus its creation position.
type storedRecord struct {
	event    eventstore.Event
	position uint64
}

// Backend implements eventstore.Backend in memory.
type Backend struct {
	mu sync.RWMutex

	records      map[eventstore.ID]storedRecord
	nextPosition uint64
	indexes      map[eventstore.Field]map[string]eventstore.IDSet
	total        int64

	newID  IDGenerator
	logger eventstore.Logger
}

// Option defines a functional option for configuring the Backend.
type Option func(*Backend) error

// WithLogger sets a logger which receives debug messages about rolled back units of work.
func WithLogger(logger eventstore.Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

// WithIDGenerator replaces the default UUIDv7 id generator.
func WithIDGenerator(generator IDGenerator) Option {
	return func(b *Backend) error {
		if generator == nil {
			return errors.New("nil id generator supplied")
		}

		b.newID = generator

		return nil
	}
}

// NewBackend creates an empty Backend.
func NewBackend(options ...Option) (*Backend, error) {
	b := &Backend{
		records: make(map[eventstore.ID]storedRecord),
		indexes: make(map[eventstore.Field]map[string]eventstore.IDSet, len(eventstore.IndexedFields())),
		newID:   eventstore.NewID,
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Update runs fn under the write lock. If fn fails or panics, all changes it made are undone in reverse order.
func (b *Backend) Update(ctx context.Context, fn func(ctx context.Context, tx eventstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := &tx{backend: b, writable: true}

	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()

		if b.logger != nil {
			b.logger.Debug(logMsgUnitRolledBack, logAttrUndoSteps, len(t.undo), logAttrError, err.Error())
		}

		return err
	}

	return nil
}

// View runs fn under the read lock. Mutations fail with eventstore.ErrReadOnlyUnit.
func (b *Backend) View(ctx context.Context, fn func(ctx context.Context, tx eventstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return fn(ctx, &tx{backend: b})
}

// tx is one unit of work. It is only valid while fn runs.
type tx struct {
	backend  *Backend
	writable bool
	undo     []func()
}

func (t *tx) Records() eventstore.RecordStore {
	return recordStore{t: t}
}

func (t *tx) Indexes() eventstore.IndexManager {
	return indexManager{t: t}
}

func (t *tx) Counter() eventstore.Counter {
	return counter{t: t}
}

func (t *tx) onRollback(step func()) {
	t.undo = append(t.undo, step)
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *tx) assertWritable() error {
	if !t.writable {
		return eventstore.ErrReadOnlyUnit
	}

	return nil
}

// copyEvent detaches the IsPublic pointer and strips the id, records are stored without it.
func copyEvent(event eventstore.Event) eventstore.Event {
	if event.IsPublic != nil {
		event.IsPublic = eventstore.Bool(*event.IsPublic)
	}

	return event.WithID("")
}
