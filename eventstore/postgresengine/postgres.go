package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultRecordsTableName  = "event_records"
	defaultIndexTableName    = "event_index"
	defaultCountersTableName = "event_counters"

	colID             = "id"
	colSequenceNumber = "sequence_number"
	colPayload        = "payload"
	colField          = "field"
	colValue          = "value"
	colRecordID       = "record_id"
	colName           = "name"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"

	unitUpdate = "update"
	unitView   = "view"
)

// IDGenerator produces fresh record ids.
type IDGenerator func() (eventstore.ID, error)

// Backend implements eventstore.Backend on PostgreSQL.
//
// Every unit of work is one database transaction at READ COMMITTED. Update units lock the records
// they read with SELECT ... FOR UPDATE, so concurrent mutations of the same record are serialized.
// View units run in READ ONLY transactions and go to the replica when the context asks for
// eventstore.EventualConsistency and a replica is configured.
type Backend struct {
	db                adapters.DBAdapter
	recordsTableName  string
	indexTableName    string
	countersTableName string
	newID             IDGenerator
	logger            Logger
	contextualLogger  ContextualLogger
	metricsCollector  MetricsCollector
	tracingCollector  TracingCollector
}

// NewBackendFromPGXPool creates a new Backend using a pgx Pool with optional configuration.
func NewBackendFromPGXPool(db *pgxpool.Pool, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewPGXAdapter(db), options...)
}

// NewBackendFromPGXPoolAndReplica creates a new Backend using a pgx Pool for the primary and one for the replica.
func NewBackendFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Backend, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewBackendFromSQLDB creates a new Backend using a sql.DB with optional configuration.
func NewBackendFromSQLDB(db *sql.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLAdapter(db), options...)
}

// NewBackendFromSQLDBAndReplica creates a new Backend using a sql.DB for the primary and one for the replica.
func NewBackendFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (*Backend, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLAdapterWithReplica(db, replica), options...)
}

// NewBackendFromSQLX creates a new Backend using a sqlx.DB with optional configuration.
func NewBackendFromSQLX(db *sqlx.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLXAdapter(db), options...)
}

// NewBackendFromSQLXAndReplica creates a new Backend using a sqlx.DB for the primary and one for the replica.
func NewBackendFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (*Backend, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLXAdapterWithReplica(db, replica), options...)
}

func newBackend(db adapters.DBAdapter, options ...Option) (*Backend, error) {
	b := &Backend{
		db:                db,
		recordsTableName:  defaultRecordsTableName,
		indexTableName:    defaultIndexTableName,
		countersTableName: defaultCountersTableName,
		newID:             eventstore.NewID,
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Update runs fn in a read-write transaction. The transaction commits if fn returns nil and rolls back otherwise.
// Serialization failures and deadlocks are reported as eventstore.ErrConcurrencyConflict, the Backend never retries.
func (b *Backend) Update(ctx context.Context, fn func(ctx context.Context, tx eventstore.Tx) error) error {
	return b.runUnit(ctx, unitUpdate, adapters.TxOptions{}, fn)
}

// View runs fn in a read-only transaction, on the replica if the context allows eventual consistency.
func (b *Backend) View(ctx context.Context, fn func(ctx context.Context, tx eventstore.Tx) error) error {
	options := adapters.TxOptions{
		ReadOnly:   true,
		UseReplica: eventstore.GetConsistencyLevel(ctx) == eventstore.EventualConsistency,
	}

	return b.runUnit(ctx, unitView, options, fn)
}

func (b *Backend) runUnit(
	ctx context.Context,
	unit string,
	options adapters.TxOptions,
	fn func(ctx context.Context, tx eventstore.Tx) error,
) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	observer, ctx := b.startUnit(ctx, unit, options)

	dbTx, beginErr := b.db.BeginTx(ctx, options)
	if beginErr != nil {
		err := translateDBError(eventstore.ErrTransactionFailed, beginErr)
		b.logError(ctx, logMsgBeginTxFailed, err, logAttrUnit, unit)
		observer.finishError(ctx, err)

		return err
	}

	t := &tx{backend: b, db: dbTx, writable: !options.ReadOnly}

	if fnErr := fn(ctx, t); fnErr != nil {
		b.rollback(ctx, dbTx, unit)
		observer.finishError(ctx, fnErr)

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		err := translateDBError(eventstore.ErrTransactionFailed, commitErr)
		b.logError(ctx, logMsgCommitFailed, err, logAttrUnit, unit)
		observer.finishError(ctx, err)

		return err
	}

	observer.finishSuccess(ctx, t.statements)

	return nil
}

// rollback ends a failed transaction. The original error wins, a rollback failure is only logged.
func (b *Backend) rollback(ctx context.Context, dbTx adapters.DBTx, unit string) {
	// the unit's context may already be canceled, the rollback must still reach the database
	rollbackCtx := context.WithoutCancel(ctx)

	if err := dbTx.Rollback(rollbackCtx); err != nil && !errors.Is(err, sql.ErrTxDone) {
		b.logWarn(ctx, logMsgRollbackFailed, logAttrError, err.Error(), logAttrUnit, unit)
	}
}

// query runs a select statement within the transaction and logs it with its duration.
func (t *tx) query(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := t.db.Query(ctx, sqlQuery)
	t.backend.observeStatement(ctx, sqlQuery, action, time.Since(start), err)
	t.statements++

	if err != nil {
		return nil, translateDBError(eventstore.ErrQueryingFailed, err)
	}

	return rows, nil
}

// exec runs a mutating statement within the transaction and returns the number of affected rows.
func (t *tx) exec(ctx context.Context, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, err := t.db.Exec(ctx, sqlQuery)
	t.backend.observeStatement(ctx, sqlQuery, action, time.Since(start), err)
	t.statements++

	if err != nil {
		return 0, translateDBError(eventstore.ErrWritingFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(eventstore.ErrWritingFailed, err)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (t *tx) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		t.backend.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// tx is one unit of work. It is only valid while fn runs.
type tx struct {
	backend    *Backend
	db         adapters.DBTx
	writable   bool
	statements int
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

func (t *tx) assertWritable() error {
	if !t.writable {
		return eventstore.ErrReadOnlyUnit
	}

	return nil
}
