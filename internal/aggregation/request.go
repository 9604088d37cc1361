package aggregation

// MaxDimensions is the number of dimensions a request may group by.
const MaxDimensions = 2

// Request describes one aggregation query by identifiers. The engine never
// mutates it.
type Request struct {
	Dimensions []DimensionSelection `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Metrics    []MetricSelection    `json:"metrics" yaml:"metrics"`
	Filters    []FilterApplication  `json:"filters,omitempty" yaml:"filters,omitempty"`
	Order      []OrderClause        `json:"order,omitempty" yaml:"order,omitempty"`
	// Limit caps the number of returned groups; 0 means no limit.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// DimensionSelection picks a dimension; Granularity applies to date buckets
// and defaults to the dimension's first granularity.
type DimensionSelection struct {
	Identifier  string      `json:"identifier" yaml:"identifier"`
	Granularity Granularity `json:"granularity,omitempty" yaml:"granularity,omitempty"`
}

// MetricSelection picks a metric.
type MetricSelection struct {
	Identifier string `json:"identifier" yaml:"identifier"`
}

// FilterApplication applies a filter with caller-supplied values.
type FilterApplication struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Values     []any  `json:"values" yaml:"values"`
}

// OrderClause sorts by a selected dimension or metric.
type OrderClause struct {
	Kind       OrderKind `json:"type" yaml:"type"`
	Identifier string    `json:"identifier" yaml:"identifier"`
	Direction  Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// NewRequest builds a request selecting the given metric identifiers.
func NewRequest(metrics ...string) Request {
	req := Request{}
	for _, m := range metrics {
		req.Metrics = append(req.Metrics, MetricSelection{Identifier: m})
	}
	return req
}

// GroupBy returns a copy of r that also groups by identifier.
func (r Request) GroupBy(identifier string, granularity ...Granularity) Request {
	sel := DimensionSelection{Identifier: identifier}
	if len(granularity) > 0 {
		sel.Granularity = granularity[0]
	}
	r.Dimensions = append(append([]DimensionSelection(nil), r.Dimensions...), sel)
	return r
}

// Where returns a copy of r with a filter applied.
func (r Request) Where(identifier string, values ...any) Request {
	r.Filters = append(append([]FilterApplication(nil), r.Filters...), FilterApplication{Identifier: identifier, Values: values})
	return r
}

// OrderBy returns a copy of r with an order clause appended.
func (r Request) OrderBy(kind OrderKind, identifier string, dir Direction) Request {
	r.Order = append(append([]OrderClause(nil), r.Order...), OrderClause{Kind: kind, Identifier: identifier, Direction: dir})
	return r
}

// WithLimit returns a copy of r with a row limit.
func (r Request) WithLimit(n int) Request {
	r.Limit = n
	return r
}
