// Package adapters provide database adapter implementations for the PostgreSQL engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including transactions and optional replica routing
// for read-only transactions.
package adapters
