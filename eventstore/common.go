package eventstore

import (
	"errors"
)

var (
	// ErrValidationFailed is returned when a record misses a required field or carries a malformed value.
	ErrValidationFailed = errors.New("event record validation failed")

	// ErrNotFound is returned when an operation addresses an id that does not exist.
	ErrNotFound = errors.New("event record not found")

	// ErrConcurrencyConflict is returned when the backing store aborted a unit of work because of a
	// conflicting concurrent unit (serialization failure, deadlock). The caller may retry.
	ErrConcurrencyConflict = errors.New("concurrency error, unit of work was aborted")

	// ErrReadOnlyUnit is returned when a mutation is attempted within a View unit of work.
	ErrReadOnlyUnit = errors.New("mutation attempted in a read-only unit of work")

	ErrNilBackend            = errors.New("nil backend supplied")
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")
	ErrEmptyTableName        = errors.New("empty table name supplied")

	ErrBuildingQueryFailed = errors.New("building query failed")
	ErrQueryingFailed      = errors.New("querying event records failed")
	ErrScanningDBRowFailed = errors.New("scanning db row failed")
	ErrWritingFailed       = errors.New("writing event records failed")
	ErrTransactionFailed   = errors.New("unit of work failed")
	ErrMarshalingFailed    = errors.New("marshaling event record failed")
)

// IDNamespace prefixes the qualified textual form of an ID.
const IDNamespace = "event"

// TotalCounterName is the name of the counter holding the number of live event records.
const TotalCounterName = "events_total"
