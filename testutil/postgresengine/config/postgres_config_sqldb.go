package config

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLDBSingleConfig opens and pings a configured *sql.DB for the test database.
func PostgresSQLDBSingleConfig(ctx context.Context) (*sql.DB, error) {
	return sqlDB(ctx, PostgresSingleDSN())
}

// PostgresSQLDBReplicaConfig opens and pings a configured *sql.DB for the replica of the test database.
func PostgresSQLDBReplicaConfig(ctx context.Context) (*sql.DB, error) {
	return sqlDB(ctx, PostgresReplicaDSN())
}

func sqlDB(ctx context.Context, dsn string) (*sql.DB, error) {
	const defaultMaxOpenConnections = 30
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return nil, errors.Join(pingErr, db.Close())
	}

	return db, nil
}
