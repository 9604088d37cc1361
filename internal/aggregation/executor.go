package aggregation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Querier runs a query. *sql.DB, *sql.Conn, *sql.Tx and *sqlx.DB satisfy it;
// the caller owns pooling, transactions and timeouts.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor compiles requests and runs them, shaping rows into typed values.
type Executor struct {
	planner *Planner
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A nil logger uses slog.Default().
func NewExecutor(planner *Planner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{planner: planner, logger: logger}
}

// Planner returns the planner requests are compiled with.
func (e *Executor) Planner() *Planner { return e.planner }

// Explain compiles req without running it.
func (e *Executor) Explain(scope Scope, req Request) (*Plan, *Errors) {
	plan, errs := e.planner.Compile(scope, req)
	if errs != nil {
		return nil, errs
	}
	e.logger.Debug("aggregation plan compiled",
		"schema", e.planner.schema.Name(), "plan_id", plan.ID, "sql", plan.SQL)
	return plan, nil
}

// Execute validates req, runs it over scope and returns the shaped rows. An
// invalid request yields a failed Result and a nil error; store failures are
// returned as errors.
func (e *Executor) Execute(ctx context.Context, q Querier, scope Scope, req Request) (*Result, error) {
	plan, errs := e.Explain(scope, req)
	if errs != nil {
		e.logger.Debug("aggregation request rejected",
			"schema", e.planner.schema.Name(), "error", errs.Err())
		return &Result{Errors: errs}, nil
	}
	return e.Run(ctx, q, plan)
}

// Run executes a compiled plan exactly once.
func (e *Executor) Run(ctx context.Context, q Querier, plan *Plan) (*Result, error) {
	start := time.Now()
	rows, err := q.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute aggregation: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	data, err := shapeRows(rows, plan)
	if err != nil {
		return nil, fmt.Errorf("read aggregation rows: %w", err)
	}

	e.logger.Debug("aggregation executed",
		"plan_id", plan.ID, "rows", len(data), "duration_ms", time.Since(start).Milliseconds())
	return &Result{Data: data}, nil
}

func shapeRows(rows *sql.Rows, plan *Plan) ([]Row, error) {
	width := len(plan.dimensions) + len(plan.metrics)
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != width {
		return nil, fmt.Errorf("expected %d columns, got %d", width, len(cols))
	}

	data := []Row{}
	raw := make([]any, width)
	ptrs := make([]any, width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := Row{
			Dimensions: make([]Value, len(plan.dimensions)),
			Metrics:    make([]Value, len(plan.metrics)),
		}
		for i, d := range plan.dimensions {
			v, err := convertValue(d.def.Type(), raw[i])
			if err != nil {
				return nil, fmt.Errorf("dimension '%s': %w", d.def.Identifier(), err)
			}
			row.Dimensions[i] = d.def.Format(v)
		}
		for i, m := range plan.metrics {
			v, err := convertValue(m.Type(), raw[len(plan.dimensions)+i])
			if err != nil {
				return nil, fmt.Errorf("metric '%s': %w", m.Identifier(), err)
			}
			row.Metrics[i] = v
		}
		data = append(data, row)
	}
	return data, rows.Err()
}
