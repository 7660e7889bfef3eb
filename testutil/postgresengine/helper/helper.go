package helper

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore/postgresengine"
	"github.com/dharma/events-api-go/testutil/postgresengine/config"
)

// AdapterType names one of the supported database adapters.
type AdapterType string

const (
	AdapterPGXPool AdapterType = "pgxpool"
	AdapterSQLDB   AdapterType = "sqldb"
	AdapterSQLX    AdapterType = "sqlx"
)

// AdapterTypes returns all supported adapters, for table driven tests.
func AdapterTypes() []AdapterType {
	return []AdapterType{AdapterPGXPool, AdapterSQLDB, AdapterSQLX}
}

// TableNames are the tables a TestDatabase creates and truncates.
type TableNames struct {
	Records  string
	Index    string
	Counters string
}

// DefaultTableNames returns the engine's default table names.
func DefaultTableNames() TableNames {
	return TableNames{Records: "event_records", Index: "event_index", Counters: "event_counters"}
}

// TestDatabase is a Backend on an empty schema plus the raw connection used to set it up.
type TestDatabase struct {
	Backend *postgresengine.Backend
	exec    func(ctx context.Context, sql string) error
}

// NewTestDatabaseOrSkip connects with the given adapter, creates the schema and empties its tables.
// The test is skipped if the database is unreachable. Connections are closed on test cleanup.
func NewTestDatabaseOrSkip(
	t testing.TB,
	adapter AdapterType,
	withReplica bool,
	tables TableNames,
	options ...postgresengine.Option,
) *TestDatabase {

	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	options = append([]postgresengine.Option{
		postgresengine.WithTableNames(tables.Records, tables.Index, tables.Counters),
	}, options...)

	var td *TestDatabase

	switch adapter {
	case AdapterPGXPool:
		td = connectPGXPool(t, ctx, withReplica, options)
	case AdapterSQLDB:
		td = connectSQLDB(t, ctx, withReplica, options)
	case AdapterSQLX:
		td = connectSQLX(t, ctx, withReplica, options)
	default:
		t.Fatalf("unsupported adapter type: %s", adapter)
	}

	require.NoError(t, td.Backend.CreateSchema(ctx), "creating the schema failed")
	td.Truncate(t, tables)

	return td
}

// Truncate empties the given tables.
func (td *TestDatabase) Truncate(t testing.TB, tables TableNames) {
	t.Helper()

	statement := fmt.Sprintf(
		"TRUNCATE TABLE %s, %s, %s RESTART IDENTITY",
		pgx.Identifier{tables.Records}.Sanitize(),
		pgx.Identifier{tables.Index}.Sanitize(),
		pgx.Identifier{tables.Counters}.Sanitize(),
	)

	require.NoError(t, td.exec(context.Background(), statement), "truncating the tables failed")
}

// Exec runs a raw statement, for tests that need to break or inspect the schema.
func (td *TestDatabase) Exec(t testing.TB, statement string) {
	t.Helper()

	require.NoError(t, td.exec(context.Background(), statement))
}

func connectPGXPool(t testing.TB, ctx context.Context, withReplica bool, options []postgresengine.Option) *TestDatabase {
	primary := openPGXPoolOrSkip(t, ctx, config.PostgresPGXPoolSingleConfig)

	var backend *postgresengine.Backend
	var err error

	if withReplica {
		replica := openPGXPoolOrSkip(t, ctx, config.PostgresPGXPoolReplicaConfig)
		backend, err = postgresengine.NewBackendFromPGXPoolAndReplica(primary, replica, options...)
	} else {
		backend, err = postgresengine.NewBackendFromPGXPool(primary, options...)
	}
	require.NoError(t, err, "creating the backend failed")

	return &TestDatabase{
		Backend: backend,
		exec: func(ctx context.Context, statement string) error {
			_, execErr := primary.Exec(ctx, statement)
			return execErr
		},
	}
}

func openPGXPoolOrSkip(t testing.TB, ctx context.Context, configFn func() (*pgxpool.Config, error)) *pgxpool.Pool {
	poolConfig, err := configFn()
	require.NoError(t, err, "parsing the pgxpool config failed")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err, "creating the pgxpool failed")

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		t.Skipf("postgres is not reachable: %v", pingErr)
	}

	t.Cleanup(pool.Close)

	return pool
}

func connectSQLDB(t testing.TB, ctx context.Context, withReplica bool, options []postgresengine.Option) *TestDatabase {
	primary := openOrSkip(t, ctx, config.PostgresSQLDBSingleConfig)

	var backend *postgresengine.Backend
	var err error

	if withReplica {
		replica := openOrSkip(t, ctx, config.PostgresSQLDBReplicaConfig)
		backend, err = postgresengine.NewBackendFromSQLDBAndReplica(primary, replica, options...)
	} else {
		backend, err = postgresengine.NewBackendFromSQLDB(primary, options...)
	}
	require.NoError(t, err, "creating the backend failed")

	return &TestDatabase{Backend: backend, exec: sqlExec(primary)}
}

func connectSQLX(t testing.TB, ctx context.Context, withReplica bool, options []postgresengine.Option) *TestDatabase {
	primary := openOrSkip(t, ctx, config.PostgresSQLXSingleConfig)

	var backend *postgresengine.Backend
	var err error

	if withReplica {
		replica := openOrSkip(t, ctx, config.PostgresSQLXReplicaConfig)
		backend, err = postgresengine.NewBackendFromSQLXAndReplica(primary, replica, options...)
	} else {
		backend, err = postgresengine.NewBackendFromSQLX(primary, options...)
	}
	require.NoError(t, err, "creating the backend failed")

	return &TestDatabase{Backend: backend, exec: sqlExec(primary.DB)}
}

// openOrSkip opens a database/sql based connection, sql.DB and sqlx.DB alike.
func openOrSkip[DB interface{ Close() error }](
	t testing.TB,
	ctx context.Context,
	open func(ctx context.Context) (DB, error),
) DB {

	db, err := open(ctx)
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close() // ignore error
	})

	return db
}

func sqlExec(db *sql.DB) func(ctx context.Context, statement string) error {
	return func(ctx context.Context, statement string) error {
		_, err := db.ExecContext(ctx, statement)
		return err
	}
}
