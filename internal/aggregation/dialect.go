package aggregation

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dialect renders the store-specific parts of a compiled query.
type Dialect interface {
	// Name is the dialect name accepted by DialectByName.
	Name() string
	// BindType is the sqlx bind type "?" placeholders are rebound to.
	BindType() int
	// QuoteIdentifier quotes a single identifier.
	QuoteIdentifier(s string) string
	// TruncateTime truncates a timestamp expression to the start of its bucket.
	TruncateTime(g Granularity, expr Fragment) (Fragment, error)
	// CastFloat casts an expression to a double precision float.
	CastFloat(expr string) string
	// BindTime converts a time bind argument into the form the store compares correctly.
	BindTime(t time.Time) any
}

// DialectByName returns the dialect for a database/sql driver or dialect name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "duckdb":
		return DuckDB{}, nil
	case "postgres", "postgresql", "pq":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// repeat renders format with expr substituted n times, repeating the args accordingly.
func repeat(format string, n int, expr Fragment) Fragment {
	subs := make([]any, n)
	var args []any
	for i := range subs {
		subs[i] = expr.SQL
		args = append(args, expr.Args...)
	}
	return Fragment{SQL: fmt.Sprintf(format, subs...), Args: args}
}

// SQLite stores timestamps as text; buckets are rendered back as
// "YYYY-MM-DD HH:MM:SS" strings.
type SQLite struct{}

// Name implements Dialect.
func (SQLite) Name() string { return "sqlite3" }

// BindType implements Dialect.
func (SQLite) BindType() int { return sqlx.QUESTION }

// QuoteIdentifier implements Dialect.
func (SQLite) QuoteIdentifier(s string) string { return quoteIdent(s) }

// CastFloat implements Dialect.
func (SQLite) CastFloat(expr string) string { return "CAST(" + expr + " AS REAL)" }

// BindTime implements Dialect.
func (SQLite) BindTime(t time.Time) any { return t.UTC().Format("2006-01-02 15:04:05") }

// TruncateTime implements Dialect. Weeks start on Monday.
func (SQLite) TruncateTime(g Granularity, expr Fragment) (Fragment, error) {
	switch g {
	case GranularityYear:
		return repeat("strftime('%%Y-01-01 00:00:00', %s)", 1, expr), nil
	case GranularityQuarter:
		return repeat("strftime('%%Y-', %s) || printf('%%02d', ((CAST(strftime('%%m', %s) AS INTEGER) - 1) / 3) * 3 + 1) || '-01 00:00:00'", 2, expr), nil
	case GranularityMonth:
		return repeat("strftime('%%Y-%%m-01 00:00:00', %s)", 1, expr), nil
	case GranularityWeek:
		return repeat("strftime('%%Y-%%m-%%d 00:00:00', %s, 'weekday 0', '-6 days')", 1, expr), nil
	case GranularityDay:
		return repeat("strftime('%%Y-%%m-%%d 00:00:00', %s)", 1, expr), nil
	case GranularityHour:
		return repeat("strftime('%%Y-%%m-%%d %%H:00:00', %s)", 1, expr), nil
	}
	return Fragment{}, fmt.Errorf("unsupported granularity %q", g)
}

// DuckDB uses date_trunc; weeks are ISO weeks.
type DuckDB struct{}

// Name implements Dialect.
func (DuckDB) Name() string { return "duckdb" }

// BindType implements Dialect.
func (DuckDB) BindType() int { return sqlx.QUESTION }

// QuoteIdentifier implements Dialect.
func (DuckDB) QuoteIdentifier(s string) string { return quoteIdent(s) }

// CastFloat implements Dialect.
func (DuckDB) CastFloat(expr string) string { return "CAST(" + expr + " AS DOUBLE)" }

// BindTime implements Dialect.
func (DuckDB) BindTime(t time.Time) any { return t }

// TruncateTime implements Dialect.
func (DuckDB) TruncateTime(g Granularity, expr Fragment) (Fragment, error) {
	return dateTrunc(g, expr)
}

// Postgres uses date_trunc and "$n" placeholders.
type Postgres struct{}

// Name implements Dialect.
func (Postgres) Name() string { return "postgres" }

// BindType implements Dialect.
func (Postgres) BindType() int { return sqlx.DOLLAR }

// QuoteIdentifier implements Dialect.
func (Postgres) QuoteIdentifier(s string) string { return quoteIdent(s) }

// CastFloat implements Dialect.
func (Postgres) CastFloat(expr string) string { return "CAST(" + expr + " AS DOUBLE PRECISION)" }

// BindTime implements Dialect.
func (Postgres) BindTime(t time.Time) any { return t }

// TruncateTime implements Dialect.
func (Postgres) TruncateTime(g Granularity, expr Fragment) (Fragment, error) {
	return dateTrunc(g, expr)
}

func dateTrunc(g Granularity, expr Fragment) (Fragment, error) {
	if !g.Valid() {
		return Fragment{}, fmt.Errorf("unsupported granularity %q", g)
	}
	return repeat("date_trunc('"+string(g)+"', %s)", 1, expr), nil
}
