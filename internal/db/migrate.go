package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// gooseDialects maps database/sql driver names to goose dialects.
var gooseDialects = map[string]string{
	"sqlite3":  "sqlite3",
	"postgres": "postgres",
}

// RunMigrations applies the pending demo schema migrations. Only SQLite and
// Postgres stores are migrated; DuckDB tables are expected to exist.
func RunMigrations(db *sql.DB, driver string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return fmt.Errorf("migrations are not supported for driver %q", driver)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrationVersion returns the applied schema version.
func MigrationVersion(db *sql.DB, driver string) (int64, error) {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return 0, fmt.Errorf("migrations are not supported for driver %q", driver)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("goose set dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}
