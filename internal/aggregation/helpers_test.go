package aggregation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/db"
)

const (
	joinProjects = "LEFT JOIN projects ON projects.id = merge_requests.project_id"
	joinMetrics  = "LEFT JOIN merge_request_metrics ON merge_request_metrics.merge_request_id = merge_requests.id"
)

// mergeRequestSchema is the schema most tests query.
func mergeRequestSchema(t *testing.T) *aggregation.Schema {
	t.Helper()
	s, err := aggregation.NewSchemaBuilder("merge_requests").
		AddDimension(
			aggregation.Column("project_id", aggregation.TypeInteger),
			aggregation.Column("state_id", aggregation.TypeInteger),
			aggregation.Column("state", aggregation.TypeInteger,
				aggregation.WithExpression(aggregation.Ref("state_id")),
				aggregation.WithFormatter(aggregation.LabelFormatter(map[string]string{"1": "opened", "3": "merged"}))),
			aggregation.Column("project_name", aggregation.TypeString,
				aggregation.WithExpression(aggregation.Ref("projects.name")),
				aggregation.WithScope(aggregation.JoinScope(joinProjects))),
			aggregation.DateBucket("created_at", nil),
			aggregation.DateBucket("merged_at", []aggregation.Granularity{aggregation.GranularityMonth, aggregation.GranularityDay},
				aggregation.WithExpression(aggregation.Ref("merge_request_metrics.merged_at")),
				aggregation.WithScope(aggregation.JoinScope(joinMetrics))),
		).
		AddMetric(
			aggregation.Count(),
			aggregation.Count(aggregation.Named("estimated"),
				aggregation.CountWhere(aggregation.Raw("merge_requests.time_estimate IS NOT NULL"))),
			aggregation.Mean("time_estimate", aggregation.TypeInteger),
			aggregation.Sum("time_estimate", aggregation.TypeInteger),
		).
		AddFilter(
			aggregation.ExactMatch("project_id", aggregation.TypeInteger),
			aggregation.ExactMatch("state_id", aggregation.TypeInteger, aggregation.MaxSize(3)),
			aggregation.ExactMatch("project_namespace", aggregation.TypeString,
				aggregation.WithExpression(aggregation.Ref("projects.namespace")),
				aggregation.WithScope(aggregation.JoinScope(joinProjects))),
			aggregation.Range("created_at", aggregation.TypeTimestamp),
		).
		Build()
	require.NoError(t, err)
	return s
}

func baseScope() aggregation.Scope {
	return aggregation.From("merge_requests")
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 9, 30, 0, 0, time.UTC)
}

// mrRow is one merge request; project defaults to 1 and created to 2024-01-08.
type mrRow struct {
	project  int64
	state    int64
	estimate *int64
	created  time.Time
	merged   *time.Time
}

func fixture(rows ...mrRow) db.Fixture {
	f := db.Fixture{
		Projects: []db.Project{
			{ID: 1, Name: "api", Namespace: "platform", CreatedAt: day(time.January, 1)},
			{ID: 2, Name: "web", Namespace: "platform", CreatedAt: day(time.January, 1)},
			{ID: 3, Name: "docs", Namespace: "community", CreatedAt: day(time.January, 1)},
		},
	}
	for i, r := range rows {
		id := int64(i + 1)
		project := r.project
		if project == 0 {
			project = 1
		}
		created := r.created
		if created.IsZero() {
			created = day(time.January, 8)
		}
		f.MergeRequests = append(f.MergeRequests, db.MergeRequest{
			ID: id, ProjectID: project, StateID: r.state, TimeEstimate: r.estimate, CreatedAt: created,
		})
		if r.merged != nil {
			f.Metrics = append(f.Metrics, db.MergeRequestMetrics{MergeRequestID: id, MergedAt: r.merged})
		}
	}
	return f
}

func execute(t *testing.T, store aggregation.Querier, req aggregation.Request) []aggregation.Row {
	t.Helper()
	exec := aggregation.NewExecutor(aggregation.NewPlanner(mergeRequestSchema(t), aggregation.SQLite{}), nil)
	res, err := exec.Execute(t.Context(), store, baseScope(), req)
	require.NoError(t, err)
	require.True(t, res.Success(), "unexpected errors: %+v", res.Errors)
	return res.Data
}
