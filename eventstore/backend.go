package eventstore

import "context"

// Backend is the backing store of the event records. It hands out units of work.
type Backend interface {
	// Update runs fn in a read-write unit of work. All changes made through the Tx become visible
	// together when fn returns nil, and none of them when fn returns an error.
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// View runs fn in a read-only unit of work. Implementations may serve it from a replica
	// when the context asks for EventualConsistency.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the storage components within one unit of work.
type Tx interface {
	Records() RecordStore
	Indexes() IndexManager
	Counter() Counter
}

// RecordStore owns the canonical id -> Event table and generates ids.
type RecordStore interface {
	// Insert assigns a fresh id and stores the event under it. It fails with ErrValidationFailed
	// for an invalid event.
	Insert(ctx context.Context, event Event) (ID, error)

	// Get returns the event or ErrNotFound. Within an Update unit the record stays locked
	// against concurrent mutation until the unit ends.
	Get(ctx context.Context, id ID) (Event, error)

	// Replace overwrites an existing event, keeping its id and creation order.
	// It fails with ErrNotFound or ErrValidationFailed.
	Replace(ctx context.Context, id ID, event Event) error

	// Delete removes an event or fails with ErrNotFound.
	Delete(ctx context.Context, id ID) error

	// AllIDs returns every live id in insertion order.
	AllIDs(ctx context.Context) ([]ID, error)

	// GetMany resolves ids to events. Unknown ids are missing from the result.
	GetMany(ctx context.Context, ids []ID) (map[ID]Event, error)
}

// IndexManager maintains the secondary indexes of the IndexedFields.
type IndexManager interface {
	// IndexInsert adds id to the bucket of each indexed field value of event.
	IndexInsert(ctx context.Context, id ID, event Event) error

	// IndexRemove removes id from the bucket of each indexed field value of event.
	IndexRemove(ctx context.Context, id ID, event Event) error

	// Lookup returns the ids in the bucket for the already normalized value, empty for unseen values.
	Lookup(ctx context.Context, field Field, normalizedVal FilterValString) (IDSet, error)
}

// Counter is the total number of live event records.
type Counter interface {
	Increment(ctx context.Context) error
	Decrement(ctx context.Context) error
	Value(ctx context.Context) (int64, error)
}
