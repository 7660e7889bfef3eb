package memengine

import (
	"context"
	"errors"
	"slices"

	"github.com/dharma/events-api-go/eventstore"
)

type recordStore struct {
	t *tx
}

func (rs recordStore) Insert(_ context.Context, event eventstore.Event) (eventstore.ID, error) {
	if err := rs.t.assertWritable(); err != nil {
		return "", err
	}

	if err := eventstore.Validate(event); err != nil {
		return "", err
	}

	b := rs.t.backend

	id, err := b.newID()
	if err != nil {
		return "", errors.Join(eventstore.ErrWritingFailed, err)
	}

	if _, exists := b.records[id]; exists {
		return "", errors.Join(eventstore.ErrWritingFailed, errors.New("generated id is already in use: "+id.String()))
	}

	b.nextPosition++
	b.records[id] = storedRecord{event: copyEvent(event), position: b.nextPosition}

	rs.t.onRollback(func() {
		delete(b.records, id)
	})

	return id, nil
}

func (rs recordStore) Get(_ context.Context, id eventstore.ID) (eventstore.Event, error) {
	record, ok := rs.t.backend.records[id]
	if !ok {
		return eventstore.Event{}, eventstore.ErrNotFound
	}

	return copyEvent(record.event), nil
}

func (rs recordStore) Replace(_ context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := rs.t.assertWritable(); err != nil {
		return err
	}

	b := rs.t.backend

	old, ok := b.records[id]
	if !ok {
		return eventstore.ErrNotFound
	}

	if err := eventstore.Validate(event); err != nil {
		return err
	}

	b.records[id] = storedRecord{event: copyEvent(event), position: old.position}

	rs.t.onRollback(func() {
		b.records[id] = old
	})

	return nil
}

func (rs recordStore) Delete(_ context.Context, id eventstore.ID) error {
	if err := rs.t.assertWritable(); err != nil {
		return err
	}

	b := rs.t.backend

	old, ok := b.records[id]
	if !ok {
		return eventstore.ErrNotFound
	}

	delete(b.records, id)

	rs.t.onRollback(func() {
		b.records[id] = old
	})

	return nil
}

func (rs recordStore) AllIDs(_ context.Context) ([]eventstore.ID, error) {
	records := rs.t.backend.records

	ids := make([]eventstore.ID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b eventstore.ID) int {
		return compareUint64(records[a].position, records[b].position)
	})

	return ids, nil
}

func (rs recordStore) GetMany(_ context.Context, ids []eventstore.ID) (map[eventstore.ID]eventstore.Event, error) {
	found := make(map[eventstore.ID]eventstore.Event, len(ids))

	for _, id := range ids {
		if record, ok := rs.t.backend.records[id]; ok {
			found[id] = copyEvent(record.event)
		}
	}

	return found, nil
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
