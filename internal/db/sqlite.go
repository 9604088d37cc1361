// Package db opens the relational stores aggregation queries run against and
// manages the demo merge request schema.
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Mode selects how a SQLite pool is sized.
type Mode string

// Pool modes.
const (
	// ModeWrite uses a single connection and immediate transactions.
	ModeWrite Mode = "write"
	// ModeRead allows concurrent readers.
	ModeRead Mode = "read"
)

// OpenSQLite opens a pool for the SQLite file at path.
//
//   - ModeWrite: MaxOpenConns=1, _txlock=immediate
//   - ModeRead: MaxOpenConns=maxOpen (0 means 4)
//
// Both modes use WAL, busy_timeout=5000ms, synchronous=NORMAL and foreign keys.
// A path that already carries a query string is used as is.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sqlx.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	db, err := sqlx.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

func buildDSN(path string, mode Mode) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
