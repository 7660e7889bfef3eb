package postgresengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// translateDBError joins err with the sentinel for its kind of failure.
// Serialization failures and deadlocks become eventstore.ErrConcurrencyConflict, no matter which driver reported them.
func translateDBError(sentinel error, err error) error {
	if isConcurrencyConflict(err) {
		return errors.Join(eventstore.ErrConcurrencyConflict, err)
	}

	return errors.Join(sentinel, err)
}

func isConcurrencyConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isConflictState(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isConflictState(string(pqErr.Code))
	}

	return false
}

func isConflictState(sqlState string) bool {
	return sqlState == sqlStateSerializationFailure || sqlState == sqlStateDeadlockDetected
}
