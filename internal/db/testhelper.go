package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// OpenTestSQLite opens a migrated SQLite database in t.TempDir() and
// registers cleanup. Fixtures, if any, are inserted in order.
func OpenTestSQLite(t *testing.T, fixtures ...Fixture) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.DB, "sqlite3"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	for _, f := range fixtures {
		if err := f.Insert(context.Background(), db); err != nil {
			t.Fatalf("insert fixture: %v", err)
		}
	}
	return db
}
