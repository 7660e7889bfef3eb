package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter implements DBAdapter for sql.DB.
type SQLAdapter struct {
	db        *sql.DB
	replicaDB *sql.DB // optional replica for read-only transactions
}

// NewSQLAdapter creates a new SQL adapter with a primary database.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// NewSQLAdapterWithReplica creates a new SQL adapter with a primary and a replica database.
func NewSQLAdapterWithReplica(db *sql.DB, replica *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, replicaDB: replica}
}

// Query executes a query on the primary database.
func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

// Exec executes a statement on the primary database.
func (s *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// BeginTx starts a transaction on the primary, or on the replica if the options allow it.
func (s *SQLAdapter) BeginTx(ctx context.Context, options TxOptions) (DBTx, error) {
	db := s.db // default to primary

	if options.ReadOnly && options.UseReplica && s.replicaDB != nil {
		db = s.replicaDB
	}

	tx, err := db.BeginTx(ctx, stdTxOptions(options))
	if err != nil {
		return nil, err
	}

	return &stdTx{tx: tx}, nil
}
