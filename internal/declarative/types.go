// Package declarative loads aggregation schemas from YAML documents:
//
//	apiVersion: duck-analytics/v1
//	kind: AggregationSchema
//	metadata:
//	  name: merge_requests
//	spec:
//	  relation: merge_requests
//	  dimensions: [...]
//	  metrics: [...]
//	  filters: [...]
package declarative

// SupportedAPIVersion is the only apiVersion accepted.
const SupportedAPIVersion = "duck-analytics/v1"

// KindAggregationSchema is the kind of schema documents.
const KindAggregationSchema = "AggregationSchema"

// Document is the envelope parsed first to check version and kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ObjectMeta holds document metadata.
type ObjectMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// SchemaDoc declares one aggregation schema and the relation it queries.
type SchemaDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       SchemaSpec `yaml:"spec"`
}

// SchemaSpec is the body of a SchemaDoc.
type SchemaSpec struct {
	// Relation is the table or view queries run against.
	Relation string `yaml:"relation"`
	// Alias is the relation alias unqualified columns resolve against.
	Alias string `yaml:"alias,omitempty"`
	// Joins are added to every query, e.g. for tables count conditions read.
	Joins []string `yaml:"joins,omitempty"`
	// Where restricts every query, e.g. to non-deleted rows.
	Where      []string        `yaml:"where,omitempty"`
	Dimensions []DimensionSpec `yaml:"dimensions"`
	Metrics    []MetricSpec    `yaml:"metrics"`
	Filters    []FilterSpec    `yaml:"filters,omitempty"`
}

// Dimension kinds.
const (
	DimensionKindColumn     = "column"
	DimensionKindDateBucket = "date_bucket"
)

// DimensionSpec declares a dimension. Column and SQL are mutually
// exclusive; with neither, the identifier is the column.
type DimensionSpec struct {
	Identifier    string            `yaml:"identifier"`
	Kind          string            `yaml:"kind,omitempty"` // column (default) or date_bucket
	Type          string            `yaml:"type,omitempty"` // required for column dimensions
	Name          string            `yaml:"name,omitempty"`
	Description   string            `yaml:"description,omitempty"`
	Column        string            `yaml:"column,omitempty"`
	SQL           string            `yaml:"sql,omitempty"`
	Joins         []string          `yaml:"joins,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
	Granularities []string          `yaml:"granularities,omitempty"`
	// RequirePresent drops rows whose expression is NULL whenever the
	// dimension is selected.
	RequirePresent bool `yaml:"require_present,omitempty"`
}

// Metric kinds.
const (
	MetricKindCount = "count"
	MetricKindMean  = "mean"
	MetricKindSum   = "sum"
)

// MetricSpec declares a metric. Count metrics take Prefix and Where; mean
// and sum metrics take Column, Type and optionally SQL.
type MetricSpec struct {
	Kind        string `yaml:"kind"`
	Prefix      string `yaml:"prefix,omitempty"`
	Where       string `yaml:"where,omitempty"`
	Column      string `yaml:"column,omitempty"`
	Type        string `yaml:"type,omitempty"`
	SQL         string `yaml:"sql,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Filter kinds.
const (
	FilterKindExactMatch = "exact_match"
	FilterKindRange      = "range"
)

// FilterSpec declares a filter.
type FilterSpec struct {
	Identifier  string   `yaml:"identifier"`
	Kind        string   `yaml:"kind,omitempty"` // exact_match (default) or range
	Type        string   `yaml:"type"`
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Column      string   `yaml:"column,omitempty"`
	SQL         string   `yaml:"sql,omitempty"`
	Joins       []string `yaml:"joins,omitempty"`
	MaxSize     int      `yaml:"max_size,omitempty"`
	// RequirePresent drops rows whose expression is NULL whenever the
	// filter is applied.
	RequirePresent bool `yaml:"require_present,omitempty"`
}
