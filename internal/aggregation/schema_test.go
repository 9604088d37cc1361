package aggregation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/domain"
)

func TestSchemaBuilder_Errors(t *testing.T) {
	_, err := aggregation.NewSchemaBuilder("broken").
		AddDimension(
			aggregation.Column("state_id", aggregation.TypeInteger),
			aggregation.Column("state_id", aggregation.TypeString),
			aggregation.DateBucket("created_at", []aggregation.Granularity{"month", "fortnight"}),
			aggregation.Column("", aggregation.TypeString),
		).
		AddMetric(
			aggregation.Count(),
			aggregation.Count(),
			aggregation.Mean("title", aggregation.TypeString),
		).
		AddFilter(
			aggregation.ExactMatch("state_id", "enum"),
		).
		Build()
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, want := range []string{
		"duplicate dimension identifier 'state_id'",
		`dimension 'created_at' declares unknown granularity "fortnight"`,
		"dimension identifier is required",
		"duplicate metric identifier 'count'",
		`metric 'mean_title' requires a numeric column, got "string"`,
		`filter 'state_id' has unknown type "enum"`,
	} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = aggregation.NewSchemaBuilder(" ").Build()
	assert.ErrorContains(t, err, "schema name is required")
}

func TestSchema_Lookup(t *testing.T) {
	s := mergeRequestSchema(t)
	assert.Equal(t, "merge_requests", s.Name())

	d, ok := s.Dimension("created_at")
	require.True(t, ok)
	bucket, ok := d.(*aggregation.DateBucketDimension)
	require.True(t, ok)
	assert.Equal(t, aggregation.GranularityMonth, bucket.DefaultGranularity())
	assert.Equal(t, aggregation.TypeTimestamp, bucket.Type())

	_, ok = s.Metric("median")
	assert.False(t, ok)

	m, ok := s.Metric("mean_time_estimate")
	require.True(t, ok)
	assert.Equal(t, aggregation.TypeFloat, m.Type())
	assert.Equal(t, "Mean time estimate", m.Name())

	// accessors return copies
	dims := s.Dimensions()
	dims[0] = nil
	assert.NotNil(t, s.Dimensions()[0])
}

func TestSchema_Describe(t *testing.T) {
	desc := mergeRequestSchema(t).Describe()

	assert.Equal(t, "merge_requests", desc.Name)
	require.Len(t, desc.Dimensions, 6)
	require.Len(t, desc.Metrics, 4)
	require.Len(t, desc.Filters, 4)

	merged := desc.Dimensions[5]
	assert.Equal(t, "merged_at", merged.Identifier)
	assert.Equal(t, "date_bucket", merged.Kind)
	assert.Equal(t, []aggregation.Granularity{"month", "day"}, merged.Granularities)
	assert.Equal(t, aggregation.GranularityMonth, merged.DefaultGranularity)

	assert.Equal(t, "column", desc.Dimensions[0].Kind)
	assert.Equal(t, "Project id", desc.Dimensions[0].Name)

	kinds := make([]string, len(desc.Metrics))
	for i, m := range desc.Metrics {
		kinds[i] = m.Kind
	}
	assert.Equal(t, []string{"count", "count", "mean", "sum"}, kinds)
	assert.Equal(t, "estimated_count", desc.Metrics[1].Identifier)

	assert.Equal(t, 3, desc.Filters[1].MaxSize)
	assert.Equal(t, aggregation.DefaultMaxSize, desc.Filters[0].MaxSize)
	assert.Equal(t, "range", desc.Filters[3].Kind)
}

func TestSchemaBuilder_ScopeAdjustments(t *testing.T) {
	keyless := func(cond string) aggregation.ScopeAdjustment {
		return aggregation.ScopeAdjustment{Apply: func(s aggregation.Scope) aggregation.Scope { return s.Where(cond) }}
	}

	_, err := aggregation.NewSchemaBuilder("merge_requests").
		AddDimension(
			aggregation.Column("state_id", aggregation.TypeInteger,
				aggregation.WithScope(keyless("merge_requests.state_id = 1"))),
			aggregation.Column("project_id", aggregation.TypeInteger,
				aggregation.WithScope(keyless("merge_requests.project_id = 2"))),
		).
		AddMetric(aggregation.Count()).
		AddFilter(aggregation.ExactMatch("author_id", aggregation.TypeInteger,
			aggregation.WithScope(aggregation.ScopeAdjustment{Key: "author"}))).
		Build()
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension 'state_id' scope adjustment #1 has no key")
	assert.ErrorContains(t, err, "dimension 'project_id' scope adjustment #1 has no key")
	assert.ErrorContains(t, err, "filter 'author_id' scope adjustment #1 has no apply function")

	_, err = aggregation.NewSchemaBuilder("merge_requests").
		AddDimension(aggregation.Column("state_id", aggregation.TypeInteger,
			aggregation.WithScope(aggregation.RequirePresent("merge_requests.state_id")))).
		AddMetric(aggregation.Count()).
		Build()
	assert.NoError(t, err)
}

func TestSchemaBuilder_TypedNil(t *testing.T) {
	var (
		dim    *aggregation.ColumnDimension
		metric *aggregation.MeanMetric
		filter *aggregation.RangeFilter
	)

	_, err := aggregation.NewSchemaBuilder("merge_requests").
		AddDimension(dim, nil).
		AddMetric(metric, aggregation.Count()).
		AddFilter(filter).
		Build()
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension #1 is nil")
	assert.ErrorContains(t, err, "dimension #2 is nil")
	assert.ErrorContains(t, err, "metric #1 is nil")
	assert.ErrorContains(t, err, "filter #1 is nil")
}
