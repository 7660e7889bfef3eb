package memengine

import (
	"context"

	"github.com/dharma/events-api-go/eventstore"
)

// indexManager keeps one map value -> IDSet per indexed field. Empty buckets are deleted.
type indexManager struct {
	t *tx
}

func (im indexManager) IndexInsert(_ context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := im.t.assertWritable(); err != nil {
		return err
	}

	for field, val := range event.IndexValues() {
		if im.add(field, val, id) {
			im.t.onRollback(func() {
				im.remove(field, val, id)
			})
		}
	}

	return nil
}

func (im indexManager) IndexRemove(_ context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := im.t.assertWritable(); err != nil {
		return err
	}

	for field, val := range event.IndexValues() {
		if im.remove(field, val, id) {
			im.t.onRollback(func() {
				im.add(field, val, id)
			})
		}
	}

	return nil
}

func (im indexManager) Lookup(
	_ context.Context,
	field eventstore.Field,
	normalizedVal eventstore.FilterValString,
) (eventstore.IDSet, error) {

	buckets, ok := im.t.backend.indexes[field]
	if !ok {
		return eventstore.IDSet{}, nil
	}

	return buckets[normalizedVal].Clone(), nil
}

// add reports whether id was not yet in the bucket.
func (im indexManager) add(field eventstore.Field, val string, id eventstore.ID) bool {
	indexes := im.t.backend.indexes

	buckets, ok := indexes[field]
	if !ok {
		buckets = make(map[string]eventstore.IDSet)
		indexes[field] = buckets
	}

	bucket, ok := buckets[val]
	if !ok {
		bucket = eventstore.NewIDSet()
		buckets[val] = bucket
	}

	if bucket.Contains(id) {
		return false
	}

	bucket[id] = struct{}{}

	return true
}

// remove reports whether id was in the bucket.
func (im indexManager) remove(field eventstore.Field, val string, id eventstore.ID) bool {
	buckets, ok := im.t.backend.indexes[field]
	if !ok {
		return false
	}

	bucket, ok := buckets[val]
	if !ok || !bucket.Contains(id) {
		return false
	}

	delete(bucket, id)

	if bucket.Len() == 0 {
		delete(buckets, val)
	}

	return true
}

// BucketCount returns the number of buckets of a field. Buckets never stay around empty.
func (b *Backend) BucketCount(field eventstore.Field) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.indexes[field])
}
