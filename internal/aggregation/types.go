// Package aggregation implements a schema-driven aggregation query engine.
//
// Callers register dimensions, metrics and filters once in a Schema, then
// describe each query as a Request made of stable identifiers. The Planner
// validates a Request against the Schema and compiles it into a single SQL
// statement over a caller-supplied base Scope; the Executor runs that
// statement and shapes every row into typed dimension and metric values.
package aggregation

import "fmt"

// ValueType is the declared type of a dimension, metric or filter value.
type ValueType string

// Supported value types.
const (
	TypeInteger   ValueType = "integer"
	TypeFloat     ValueType = "float"
	TypeString    ValueType = "string"
	TypeTimestamp ValueType = "timestamp"
	TypeBoolean   ValueType = "boolean"
)

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeString, TypeTimestamp, TypeBoolean:
		return true
	}
	return false
}

// key is the field name used when a value of this type is serialized.
func (t ValueType) key() string {
	return string(t) + "_value"
}

// ParseValueType converts a type name into a ValueType.
func ParseValueType(s string) (ValueType, error) {
	t := ValueType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown value type %q", s)
	}
	return t, nil
}

// Granularity is the bucket width of a date bucket dimension.
type Granularity string

// Supported granularities.
const (
	GranularityYear    Granularity = "year"
	GranularityQuarter Granularity = "quarter"
	GranularityMonth   Granularity = "month"
	GranularityWeek    Granularity = "week"
	GranularityDay     Granularity = "day"
	GranularityHour    Granularity = "hour"
)

// DefaultGranularities is used when a date bucket declares none.
var DefaultGranularities = []Granularity{GranularityMonth, GranularityWeek, GranularityDay}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityYear, GranularityQuarter, GranularityMonth, GranularityWeek, GranularityDay, GranularityHour:
		return true
	}
	return false
}

// OrderKind tells whether an order clause references a dimension or a metric.
type OrderKind string

// Order clause kinds.
const (
	OrderDimension OrderKind = "dimension"
	OrderMetric    OrderKind = "metric"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) sql() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Valid reports whether d is asc, desc or empty (asc).
func (d Direction) Valid() bool {
	return d == "" || d == Asc || d == Desc
}
