package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/engine"
)

// Open connects to the store named by driver ("sqlite3", "duckdb" or
// "postgres") and returns it with the matching SQL dialect. mode only
// affects SQLite pool sizing.
func Open(ctx context.Context, driver, dsn string, mode Mode) (*sqlx.DB, aggregation.Dialect, error) {
	dialect, err := aggregation.DialectByName(driver)
	if err != nil {
		return nil, nil, err
	}

	var db *sqlx.DB
	switch dialect.(type) {
	case aggregation.SQLite:
		db, err = OpenSQLite(dsn, mode, 0)
	case aggregation.DuckDB:
		raw, derr := engine.OpenDuckDB(ctx, dsn)
		if derr != nil {
			return nil, nil, derr
		}
		db = sqlx.NewDb(raw, "duckdb")
	case aggregation.Postgres:
		db, err = openPostgres(ctx, dsn)
	}
	if err != nil {
		return nil, nil, err
	}
	return db, dialect, nil
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}
