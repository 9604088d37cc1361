package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Loader runs projection queries: plain rows of selected columns for every
// row passing the request filters, without grouping or typed shaping. Use it
// to fetch identifiers or a few columns instead of analytics.
type Loader struct {
	planner *Planner
	logger  *slog.Logger
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(planner *Planner, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{planner: planner, logger: logger}
}

func (l *Loader) compile(scope Scope, req RawRequest) (*Plan, error) {
	plan, errs := l.planner.CompileProjection(scope, req)
	if errs != nil {
		return nil, errs.Err()
	}
	l.logger.Debug("projection plan compiled", "plan_id", plan.ID, "sql", plan.SQL)
	return plan, nil
}

// Load returns each row as a column name to value map. Byte slices are
// returned as strings. Invalid requests return a *domain.ValidationError.
func (l *Loader) Load(ctx context.Context, q sqlx.QueryerContext, scope Scope, req RawRequest) ([]map[string]any, error) {
	plan, err := l.compile(scope, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := q.QueryxContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute projection: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []map[string]any{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scan projection row: %w", err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read projection rows: %w", err)
	}

	l.logger.Debug("projection executed",
		"plan_id", plan.ID, "rows", len(out), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// LoadInto scans the rows into dest, a pointer to a slice of structs with
// `db` tags matching the projected column names.
func (l *Loader) LoadInto(ctx context.Context, q sqlx.QueryerContext, scope Scope, req RawRequest, dest any) error {
	plan, err := l.compile(scope, req)
	if err != nil {
		return err
	}
	if err := sqlx.SelectContext(ctx, q, dest, plan.SQL, plan.Args...); err != nil {
		return fmt.Errorf("execute projection: %w", err)
	}
	return nil
}
