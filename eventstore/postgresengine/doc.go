// Package postgresengine provides a PostgreSQL implementation of eventstore.Backend.
//
// Records are stored as jsonb payloads in the records table, ordered by a bigserial sequence number.
// The index table holds one (field, value, record_id) row per bucket membership and the counters
// table holds the total number of live records. Every unit of work is one transaction.
//
// Multiple database adapters are supported (pgx, sql.DB, sqlx), each with an optional read replica
// that serves View units when the context asks for eventual consistency.
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	backend, _ := postgresengine.NewBackendFromPGXPool(db)
//	_ = backend.CreateSchema(ctx)
//	service, _ := eventstore.NewService(backend)
//
//	// With custom table names and logging
//	backend, _ := postgresengine.NewBackendFromPGXPool(
//		db,
//		postgresengine.WithTableNames("my_records", "my_index", "my_counters"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	// Reads from the replica
//	backend, _ := postgresengine.NewBackendFromPGXPoolAndReplica(primary, replica)
//	events, _ := service.List(eventstore.WithEventualConsistency(ctx), filter, 1, 10)
package postgresengine
