package db

import "embed"

// migrationsFS holds the goose migrations for the demo merge request tables.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
