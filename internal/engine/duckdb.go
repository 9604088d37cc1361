// Package engine opens embedded DuckDB databases for aggregation queries.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
)

// OpenDuckDB opens a DuckDB database. An empty path or ":memory:" opens an
// in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

var viewName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sourceReaders maps file extensions to the DuckDB table function reading them.
var sourceReaders = map[string]string{
	".parquet": "read_parquet",
	".csv":     "read_csv_auto",
	".json":    "read_json_auto",
	".ndjson":  "read_json_auto",
}

// RegisterSource exposes a Parquet, CSV or JSON file as a view named name, so
// aggregation schemas can use the file as their relation.
func RegisterSource(ctx context.Context, db *sql.DB, name, path string) error {
	if !viewName.MatchString(name) {
		return fmt.Errorf("invalid source name %q", name)
	}
	reader, ok := sourceReaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("unsupported source file %q: expected .parquet, .csv or .json", path)
	}
	stmt := fmt.Sprintf(`CREATE OR REPLACE VIEW "%s" AS SELECT * FROM %s('%s')`,
		name, reader, strings.ReplaceAll(path, "'", "''"))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("register source %s: %w", name, err)
	}
	return nil
}

// ParseSource parses a "name=path" source flag.
func ParseSource(s string) (name, path string, err error) {
	name, path, ok := strings.Cut(s, "=")
	if !ok || name == "" || path == "" {
		return "", "", fmt.Errorf("invalid source %q: expected name=path", s)
	}
	return name, path, nil
}
