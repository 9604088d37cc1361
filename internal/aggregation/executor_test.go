package aggregation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/db"
)

func TestExecute_MeanOfIntegersIsFloat(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{state: 1, estimate: db.Int64(1)},
		mrRow{state: 1, estimate: db.Int64(3)},
		mrRow{state: 1, estimate: db.Int64(5)},
	))

	rows := execute(t, store, aggregation.NewRequest("mean_time_estimate").GroupBy("state_id"))
	require.Len(t, rows, 1)
	assert.Equal(t, []aggregation.Value{aggregation.IntegerValue(1)}, rows[0].Dimensions)
	assert.Equal(t, []aggregation.Value{aggregation.FloatValue(3)}, rows[0].Metrics)

	store = db.OpenTestSQLite(t, fixture(
		mrRow{state: 1, estimate: db.Int64(1)},
		mrRow{state: 1, estimate: db.Int64(2)},
	))
	rows = execute(t, store, aggregation.NewRequest("mean_time_estimate"))
	require.Len(t, rows, 1)
	assert.Equal(t, aggregation.FloatValue(1.5), rows[0].Metrics[0])
}

func TestExecute_NoDimensionsReturnsOneRow(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{state: 1, estimate: db.Int64(10)},
		mrRow{state: 2},
		mrRow{state: 3, estimate: db.Int64(20)},
	))

	rows := execute(t, store, aggregation.NewRequest("count", "estimated_count", "sum_time_estimate", "mean_time_estimate"))
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Dimensions)
	assert.Equal(t, []aggregation.Value{
		aggregation.IntegerValue(3),
		aggregation.IntegerValue(2),
		aggregation.IntegerValue(30),
		aggregation.FloatValue(15),
	}, rows[0].Metrics)
}

func TestExecute_EmptyGroups(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(mrRow{state: 2}))

	rows := execute(t, store, aggregation.NewRequest("count", "sum_time_estimate", "mean_time_estimate"))
	require.Len(t, rows, 1)
	assert.Equal(t, []aggregation.Value{
		aggregation.IntegerValue(1),
		aggregation.IntegerValue(0),
		aggregation.NullValue(aggregation.TypeFloat),
	}, rows[0].Metrics)

	rows = execute(t, store, aggregation.NewRequest("count").GroupBy("state_id").Where("state_id", 1))
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
}

func TestExecute_NullDimensionCollapsesToOneGroup(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{state: 3, merged: db.Time(day(time.January, 17))},
		mrRow{state: 1},
		mrRow{state: 1},
		mrRow{state: 2},
	))

	rows := execute(t, store, aggregation.NewRequest("count").GroupBy("merged_at"))
	require.Len(t, rows, 2)

	assert.Equal(t, aggregation.NullValue(aggregation.TypeTimestamp), rows[0].Dimensions[0])
	assert.Equal(t, aggregation.IntegerValue(3), rows[0].Metrics[0])

	assert.Equal(t, "2024-01-01T00:00:00Z", rows[1].Dimensions[0].Display())
	assert.Equal(t, aggregation.IntegerValue(1), rows[1].Metrics[0])
}

func TestExecute_OrderByMetricBreaksTiesByDimension(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{project: 3, state: 1},
		mrRow{project: 1, state: 1},
		mrRow{project: 2, state: 1},
		mrRow{project: 3, state: 1},
		mrRow{project: 2, state: 1},
		mrRow{project: 1, state: 1},
		mrRow{project: 2, state: 1},
	))

	rows := execute(t, store, aggregation.NewRequest("count").
		GroupBy("project_id").
		OrderBy(aggregation.OrderMetric, "count", aggregation.Desc))

	got := make([][2]int64, len(rows))
	for i, r := range rows {
		got[i] = [2]int64{r.Dimensions[0].Int64(), r.Metrics[0].Int64()}
	}
	assert.Equal(t, [][2]int64{{2, 3}, {1, 2}, {3, 2}}, got)

	rows = execute(t, store, aggregation.NewRequest("count").
		GroupBy("project_id").
		OrderBy(aggregation.OrderMetric, "count", aggregation.Desc).
		WithLimit(1))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Dimensions[0].Int64())
}

func TestExecute_DateBuckets(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{state: 1, created: day(time.January, 8)},
		mrRow{state: 1, created: day(time.January, 10)},
		mrRow{state: 1, created: day(time.January, 15)},
		mrRow{state: 1, created: day(time.February, 1)},
	))

	buckets := func(rows []aggregation.Row) map[string]int64 {
		out := map[string]int64{}
		for _, r := range rows {
			require.Equal(t, aggregation.TypeTimestamp, r.Dimensions[0].Type)
			out[r.Dimensions[0].Display()] = r.Metrics[0].Int64()
		}
		return out
	}

	// month is the first default granularity
	rows := execute(t, store, aggregation.NewRequest("count").GroupBy("created_at"))
	assert.Equal(t, map[string]int64{
		"2024-01-01T00:00:00Z": 3,
		"2024-02-01T00:00:00Z": 1,
	}, buckets(rows))

	rows = execute(t, store, aggregation.NewRequest("count").GroupBy("created_at", aggregation.GranularityWeek))
	assert.Equal(t, map[string]int64{
		"2024-01-08T00:00:00Z": 2,
		"2024-01-15T00:00:00Z": 1,
		"2024-01-29T00:00:00Z": 1,
	}, buckets(rows))

	rows = execute(t, store, aggregation.NewRequest("count").GroupBy("created_at", aggregation.GranularityDay))
	assert.Len(t, rows, 4)
}

func TestExecute_FormatterAppliesAfterGrouping(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{state: 1},
		mrRow{state: 1},
		mrRow{state: 2},
		mrRow{state: 3},
	))

	rows := execute(t, store, aggregation.NewRequest("count").GroupBy("state"))
	require.Len(t, rows, 3)
	assert.Equal(t, aggregation.StringValue("opened"), rows[0].Dimensions[0])
	assert.Equal(t, aggregation.IntegerValue(2), rows[0].Metrics[0])
	// values without a label keep their type
	assert.Equal(t, aggregation.IntegerValue(2), rows[1].Dimensions[0])
	assert.Equal(t, aggregation.StringValue("merged"), rows[2].Dimensions[0])
}

func TestExecute_Filters(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{project: 1, state: 1, created: day(time.January, 8)},
		mrRow{project: 2, state: 1, created: day(time.January, 10)},
		mrRow{project: 3, state: 3, created: day(time.January, 15)},
		mrRow{project: 1, state: 2, created: day(time.February, 1)},
	))

	count := func(req aggregation.Request) int64 {
		rows := execute(t, store, req)
		require.Len(t, rows, 1)
		return rows[0].Metrics[0].Int64()
	}

	assert.Equal(t, int64(2), count(aggregation.NewRequest("count").Where("state_id", 1)))
	assert.Equal(t, int64(3), count(aggregation.NewRequest("count").Where("state_id", 1, 2)))
	assert.Equal(t, int64(3), count(aggregation.NewRequest("count").Where("project_namespace", "platform")))
	assert.Equal(t, int64(2), count(aggregation.NewRequest("count").
		Where("created_at", "2024-01-09", day(time.January, 16))))
	assert.Equal(t, int64(3), count(aggregation.NewRequest("count").
		Where("created_at", day(time.January, 10), nil)))
	// the upper bound is exclusive
	assert.Equal(t, int64(2), count(aggregation.NewRequest("count").
		Where("created_at", nil, day(time.January, 15))))

	// filters combine with AND
	assert.Equal(t, int64(1), count(aggregation.NewRequest("count").
		Where("project_namespace", "platform").
		Where("state_id", 2)))
}

func TestExecute_SharedJoinAppliedOnce(t *testing.T) {
	store := db.OpenTestSQLite(t, fixture(
		mrRow{project: 1, state: 1},
		mrRow{project: 2, state: 1},
		mrRow{project: 3, state: 1},
	))

	rows := execute(t, store, aggregation.NewRequest("count").
		GroupBy("project_name").
		Where("project_namespace", "platform"))
	require.Len(t, rows, 2)
	assert.Equal(t, aggregation.StringValue("api"), rows[0].Dimensions[0])
	assert.Equal(t, aggregation.StringValue("web"), rows[1].Dimensions[0])
}

func TestExecute_InvalidRequest(t *testing.T) {
	store := db.OpenTestSQLite(t)
	exec := aggregation.NewExecutor(aggregation.NewPlanner(mergeRequestSchema(t), aggregation.SQLite{}), nil)

	res, err := exec.Execute(t.Context(), store, baseScope(), aggregation.NewRequest("nope"))
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, []string{"Unknown metric identifier 'nope'"}, res.Errors.Metrics)
	assert.Nil(t, res.Data)
}

func TestExecute_StoreError(t *testing.T) {
	store := db.OpenTestSQLite(t)
	require.NoError(t, store.Close())

	exec := aggregation.NewExecutor(aggregation.NewPlanner(mergeRequestSchema(t), aggregation.SQLite{}), nil)
	_, err := exec.Execute(t.Context(), store, baseScope(), aggregation.NewRequest("count"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute aggregation")
}

func TestResult_Payload(t *testing.T) {
	ok := &aggregation.Result{}
	data, err := ok.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": []}`, string(data))

	failed := &aggregation.Result{Errors: &aggregation.Errors{Order: []string{"bad order"}}}
	data, err = failed.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors": {"order": ["bad order"]}}`, string(data))
	assert.EqualError(t, failed.Errors.Err(), "invalid aggregation request: order: bad order")
}
