// Package config provides PostgreSQL database configuration for event store testing.
//
// This package contains factory functions for creating database connections
// using the supported PostgreSQL adapters (pgx.Pool, sql.DB, sqlx.DB)
// with the test database DSNs. The DSNs can be overridden by environment variables.
package config
