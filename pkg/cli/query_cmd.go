package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/db"
)

func newQueryCmd(s *session) *cobra.Command {
	var (
		dimensions []string
		metrics    []string
		filters    []string
		order      []string
		limit      int
		explain    bool
	)

	cmd := &cobra.Command{
		Use:   "query <schema>",
		Short: "Run an aggregation query",
		Example: `  # Merge requests per state for two projects
  aggq query merge_requests -m count -d state_id -f project_id=1,2

  # Weekly mean estimate, busiest weeks first
  aggq query merge_requests -m mean_time_estimate -m count -d created_at:week --order count:desc

  # Show the SQL without running it
  aggq query merge_requests -m count -d merged_at --explain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := s.registry()
			if err != nil {
				return err
			}
			def, err := registry.Get(args[0])
			if err != nil {
				return err
			}

			req := aggregation.NewRequest(metrics...).WithLimit(limit)
			for _, d := range dimensions {
				req.Dimensions = append(req.Dimensions, parseDimension(d))
			}
			for _, f := range filters {
				app, err := parseFilter(def.Schema, f)
				if err != nil {
					return err
				}
				req.Filters = append(req.Filters, app)
			}
			for _, o := range order {
				id, dir := parseDirection(o)
				req.Order = append(req.Order, aggregation.OrderClause{Identifier: id, Direction: dir})
			}

			store, dialect, err := s.openStore(cmd.Context(), db.ModeRead)
			if err != nil {
				return err
			}
			defer closeQuietly(s.logger, store)

			exec := aggregation.NewExecutor(aggregation.NewPlanner(def.Schema, dialect), s.logger)
			w := cmd.OutOrStdout()

			if explain {
				plan, errs := exec.Explain(def.Scope, req)
				if errs != nil {
					return errs.Err()
				}
				if s.output == outputJSON || s.output == outputYAML {
					return printTabular(w, s.output, map[string]any{"sql": plan.SQL, "args": plan.Args}, nil, nil)
				}
				_, _ = fmt.Fprintln(w, plan.SQL)
				for i, a := range plan.Args {
					_, _ = fmt.Fprintf(w, "-- arg %d = %v\n", i+1, a)
				}
				return nil
			}

			res, err := exec.Execute(cmd.Context(), store, def.Scope, req)
			if err != nil {
				return err
			}
			if !res.Success() {
				return res.Errors.Err()
			}

			columns := make([]string, 0, len(req.Dimensions)+len(req.Metrics))
			for _, d := range req.Dimensions {
				columns = append(columns, d.Identifier)
			}
			for _, m := range req.Metrics {
				columns = append(columns, m.Identifier)
			}
			rows := make([][]string, len(res.Data))
			for i, r := range res.Data {
				row := make([]string, 0, len(columns))
				for _, v := range r.Dimensions {
					row = append(row, v.Display())
				}
				for _, v := range r.Metrics {
					row = append(row, v.Display())
				}
				rows[i] = row
			}
			return printTabular(w, s.output, res.Payload(), columns, rows)
		},
	}

	cmd.Flags().StringArrayVarP(&dimensions, "dimension", "d", nil, "Dimension to group by, as identifier[:granularity] (at most two)")
	cmd.Flags().StringSliceVarP(&metrics, "metric", "m", nil, "Metric to compute (repeatable)")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as identifier=v1,v2; range filters take from,to")
	cmd.Flags().StringArrayVar(&order, "order", nil, "Order by a selected dimension or metric, as identifier[:asc|desc]")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of groups (0 for no limit)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the compiled SQL instead of running it")

	return cmd
}

func newLoadCmd(s *session) *cobra.Command {
	var (
		columns []string
		filters []string
		order   []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "load <schema>",
		Short: "Load plain rows matching the schema's filters",
		Example: `  # Ids of merged merge requests in the platform namespace
  aggq load merge_requests --select id -f state_id=3 -f project_namespace=platform`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := s.registry()
			if err != nil {
				return err
			}
			def, err := registry.Get(args[0])
			if err != nil {
				return err
			}

			req := aggregation.RawRequest{Projection: columns, Limit: limit}
			for _, f := range filters {
				app, err := parseFilter(def.Schema, f)
				if err != nil {
					return err
				}
				req.Filters = append(req.Filters, app)
			}
			for _, o := range order {
				col, dir := parseDirection(o)
				req.Order = append(req.Order, aggregation.ColumnOrder{Column: col, Direction: dir})
			}

			store, dialect, err := s.openStore(cmd.Context(), db.ModeRead)
			if err != nil {
				return err
			}
			defer closeQuietly(s.logger, store)

			loader := aggregation.NewLoader(aggregation.NewPlanner(def.Schema, dialect), s.logger)
			data, err := loader.Load(cmd.Context(), store, def.Scope, req)
			if err != nil {
				return err
			}

			names := make([]string, len(columns))
			for i, c := range columns {
				names[i] = c[strings.LastIndex(c, ".")+1:]
			}
			rows := make([][]string, len(data))
			for i, m := range data {
				rows[i] = make([]string, len(names))
				for j, n := range names {
					if v := m[n]; v != nil {
						rows[i][j] = fmt.Sprint(v)
					} else {
						rows[i][j] = "NULL"
					}
				}
			}
			return printTabular(cmd.OutOrStdout(), s.output, map[string]any{"data": data}, names, rows)
		},
	}

	cmd.Flags().StringSliceVar(&columns, "select", nil, "Columns to return, unqualified columns belong to the schema's relation")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as identifier=v1,v2; range filters take from,to")
	cmd.Flags().StringArrayVar(&order, "order", nil, "Order by a selected column, as column[:asc|desc]")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows (0 for no limit)")
	_ = cmd.MarkFlagRequired("select")

	return cmd
}
