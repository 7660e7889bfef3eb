package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the postgres engine.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	BeginTx(ctx context.Context, options TxOptions) (DBTx, error)
}

// DBTx is one database transaction. It must be finished with Commit or Rollback.
type DBTx interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxOptions selects the kind of transaction.
type TxOptions struct {
	// ReadOnly starts a READ ONLY transaction.
	ReadOnly bool

	// UseReplica routes a read-only transaction to the replica, if the adapter has one.
	UseReplica bool
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
