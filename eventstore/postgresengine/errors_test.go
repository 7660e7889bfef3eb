package postgresengine_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/postgresengine"
)

func Test_TranslateDBError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedSentinel error
	}{
		{name: "pgx_serialization_failure", err: &pgconn.PgError{Code: "40001"}, expectedSentinel: eventstore.ErrConcurrencyConflict},
		{name: "pgx_deadlock", err: &pgconn.PgError{Code: "40P01"}, expectedSentinel: eventstore.ErrConcurrencyConflict},
		{name: "pq_serialization_failure", err: &pq.Error{Code: "40001"}, expectedSentinel: eventstore.ErrConcurrencyConflict},
		{name: "pq_deadlock_wrapped", err: fmt.Errorf("exec: %w", &pq.Error{Code: "40P01"}), expectedSentinel: eventstore.ErrConcurrencyConflict},
		{name: "pgx_unique_violation", err: &pgconn.PgError{Code: "23505"}, expectedSentinel: eventstore.ErrWritingFailed},
		{name: "plain_error", err: errors.New("connection reset"), expectedSentinel: eventstore.ErrWritingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			err := postgresengine.TranslateDBError(eventstore.ErrWritingFailed, tt.err)

			// assert
			assert.ErrorIs(t, err, tt.expectedSentinel)
			assert.ErrorIs(t, err, tt.err, "the driver error stays inspectable")
		})
	}
}

func Test_TranslateDBError_ClassifiesConflicts(t *testing.T) {
	err := postgresengine.TranslateDBError(eventstore.ErrQueryingFailed, &pgconn.PgError{Code: "40001"})

	assert.Equal(t, eventstore.ErrorTypeConcurrencyConflict, eventstore.ClassifyError(err))
}
