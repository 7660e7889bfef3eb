package postgresengine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dharma/events-api-go/eventstore"
)

const actionCreateSchema = "create_schema"

// CreateSchema creates the records, index, and counters tables with their constraints if they do not exist yet.
// It is idempotent and runs outside of any unit of work.
func (b *Backend) CreateSchema(ctx context.Context) error {
	for _, statement := range b.schemaStatements() {
		start := time.Now()
		_, err := b.db.Exec(ctx, statement)
		b.observeStatement(ctx, statement, actionCreateSchema, time.Since(start), err)

		if err != nil {
			return translateDBError(eventstore.ErrWritingFailed, err)
		}
	}

	return nil
}

// schemaStatements returns the DDL, one statement per entry.
func (b *Backend) schemaStatements() []string {
	records := pgx.Identifier{b.recordsTableName}.Sanitize()
	index := pgx.Identifier{b.indexTableName}.Sanitize()
	counters := pgx.Identifier{b.countersTableName}.Sanitize()
	recordIDIndex := pgx.Identifier{b.indexTableName + "_" + colRecordID + "_idx"}.Sanitize()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s bigserial NOT NULL UNIQUE,
	%s text PRIMARY KEY,
	%s jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`, records, colSequenceNumber, colID, colPayload),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s text NOT NULL,
	%s text NOT NULL,
	%s text NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,
	PRIMARY KEY (%s, %s, %s)
)`, index, colField, colValue, colRecordID, records, colID, colField, colValue, colRecordID),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, recordIDIndex, index, colRecordID),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s text PRIMARY KEY,
	%s bigint NOT NULL DEFAULT 0 CHECK (%s >= 0)
)`, counters, colName, colValue, colValue),
	}
}
