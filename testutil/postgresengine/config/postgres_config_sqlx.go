package config

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLXSingleConfig opens and pings a configured *sqlx.DB for the test database.
func PostgresSQLXSingleConfig(ctx context.Context) (*sqlx.DB, error) {
	return sqlxDB(ctx, PostgresSingleDSN())
}

// PostgresSQLXReplicaConfig opens and pings a configured *sqlx.DB for the replica of the test database.
func PostgresSQLXReplicaConfig(ctx context.Context) (*sqlx.DB, error) {
	return sqlxDB(ctx, PostgresReplicaDSN())
}

func sqlxDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const defaultMaxOpenConnections = 30
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", dsn)
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
