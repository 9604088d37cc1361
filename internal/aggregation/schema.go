package aggregation

import (
	"fmt"
	"strings"

	"duck-analytics/internal/domain"
)

// Schema is an immutable registry of dimensions, metrics and filters, each
// keyed by identifier. It is safe for concurrent use.
type Schema struct {
	name       string
	dimensions []Dimension
	metrics    []Metric
	filters    []Filter
	dimByID    map[string]Dimension
	metricByID map[string]Metric
	filterByID map[string]Filter
}

// SchemaBuilder collects definitions for a Schema. It is not safe for
// concurrent use; build schemas at startup.
type SchemaBuilder struct {
	name       string
	dimensions []Dimension
	metrics    []Metric
	filters    []Filter
}

// NewSchemaBuilder starts a schema named name.
func NewSchemaBuilder(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name}
}

// AddDimension registers dimensions.
func (b *SchemaBuilder) AddDimension(dims ...Dimension) *SchemaBuilder {
	b.dimensions = append(b.dimensions, dims...)
	return b
}

// AddMetric registers metrics.
func (b *SchemaBuilder) AddMetric(metrics ...Metric) *SchemaBuilder {
	b.metrics = append(b.metrics, metrics...)
	return b
}

// AddFilter registers filters.
func (b *SchemaBuilder) AddFilter(filters ...Filter) *SchemaBuilder {
	b.filters = append(b.filters, filters...)
	return b
}

// Build validates the collected definitions and freezes them. Every problem
// is reported in one *domain.ValidationError.
func (b *SchemaBuilder) Build() (*Schema, error) {
	var errs []string
	if strings.TrimSpace(b.name) == "" {
		errs = append(errs, "schema name is required")
	}

	s := &Schema{
		name:       b.name,
		dimByID:    make(map[string]Dimension, len(b.dimensions)),
		metricByID: make(map[string]Metric, len(b.metrics)),
		filterByID: make(map[string]Filter, len(b.filters)),
	}

	for i, d := range b.dimensions {
		if isNilDimension(d) {
			errs = append(errs, fmt.Sprintf("dimension #%d is nil", i+1))
			continue
		}
		if msg := checkIdentifier("dimension", d.Identifier(), s.dimByID[d.Identifier()] != nil); msg != "" {
			errs = append(errs, msg)
			continue
		}
		errs = append(errs, d.validate()...)
		s.dimByID[d.Identifier()] = d
		s.dimensions = append(s.dimensions, d)
	}
	for i, m := range b.metrics {
		if isNilMetric(m) {
			errs = append(errs, fmt.Sprintf("metric #%d is nil", i+1))
			continue
		}
		if msg := checkIdentifier("metric", m.Identifier(), s.metricByID[m.Identifier()] != nil); msg != "" {
			errs = append(errs, msg)
			continue
		}
		errs = append(errs, m.validate()...)
		s.metricByID[m.Identifier()] = m
		s.metrics = append(s.metrics, m)
	}
	for i, f := range b.filters {
		if isNilFilter(f) {
			errs = append(errs, fmt.Sprintf("filter #%d is nil", i+1))
			continue
		}
		if msg := checkIdentifier("filter", f.Identifier(), s.filterByID[f.Identifier()] != nil); msg != "" {
			errs = append(errs, msg)
			continue
		}
		errs = append(errs, f.validate()...)
		s.filterByID[f.Identifier()] = f
		s.filters = append(s.filters, f)
	}

	if len(errs) > 0 {
		return nil, domain.ErrValidation("invalid schema %q: %s", b.name, strings.Join(errs, "; "))
	}
	return s, nil
}

// isNilDimension also catches typed nil pointers such as (*ColumnDimension)(nil).
func isNilDimension(d Dimension) bool {
	switch v := d.(type) {
	case nil:
		return true
	case *ColumnDimension:
		return v == nil
	case *DateBucketDimension:
		return v == nil
	}
	return false
}

func isNilMetric(m Metric) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *CountMetric:
		return v == nil
	case *MeanMetric:
		return v == nil
	case *SumMetric:
		return v == nil
	}
	return false
}

func isNilFilter(f Filter) bool {
	switch v := f.(type) {
	case nil:
		return true
	case *ExactMatchFilter:
		return v == nil
	case *RangeFilter:
		return v == nil
	}
	return false
}

func checkIdentifier(kind, identifier string, duplicate bool) string {
	switch {
	case strings.TrimSpace(identifier) == "":
		return fmt.Sprintf("%s identifier is required", kind)
	case duplicate:
		return fmt.Sprintf("duplicate %s identifier '%s'", kind, identifier)
	}
	return ""
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Dimension looks up a dimension by identifier.
func (s *Schema) Dimension(identifier string) (Dimension, bool) {
	d, ok := s.dimByID[identifier]
	return d, ok
}

// Metric looks up a metric by identifier.
func (s *Schema) Metric(identifier string) (Metric, bool) {
	m, ok := s.metricByID[identifier]
	return m, ok
}

// Filter looks up a filter by identifier.
func (s *Schema) Filter(identifier string) (Filter, bool) {
	f, ok := s.filterByID[identifier]
	return f, ok
}

// Dimensions returns the dimensions in declaration order.
func (s *Schema) Dimensions() []Dimension { return append([]Dimension(nil), s.dimensions...) }

// Metrics returns the metrics in declaration order.
func (s *Schema) Metrics() []Metric { return append([]Metric(nil), s.metrics...) }

// Filters returns the filters in declaration order.
func (s *Schema) Filters() []Filter { return append([]Filter(nil), s.filters...) }

// SchemaDescription is the serializable export of a Schema used for
// documentation and client-side query builders.
type SchemaDescription struct {
	Name       string                  `json:"name" yaml:"name"`
	Dimensions []DefinitionDescription `json:"dimensions" yaml:"dimensions"`
	Metrics    []DefinitionDescription `json:"metrics" yaml:"metrics"`
	Filters    []DefinitionDescription `json:"filters" yaml:"filters"`
}

// DefinitionDescription describes one dimension, metric or filter.
type DefinitionDescription struct {
	Identifier         string        `json:"identifier" yaml:"identifier"`
	Name               string        `json:"name" yaml:"name"`
	Kind               string        `json:"kind" yaml:"kind"`
	Type               ValueType     `json:"type" yaml:"type"`
	Description        string        `json:"description,omitempty" yaml:"description,omitempty"`
	Granularities      []Granularity `json:"granularities,omitempty" yaml:"granularities,omitempty"`
	DefaultGranularity Granularity   `json:"default_granularity,omitempty" yaml:"default_granularity,omitempty"`
	MaxSize            int           `json:"max_size,omitempty" yaml:"max_size,omitempty"`
}

// Describe exports every registered definition exactly once, in declaration order.
func (s *Schema) Describe() SchemaDescription {
	desc := SchemaDescription{
		Name:       s.name,
		Dimensions: make([]DefinitionDescription, 0, len(s.dimensions)),
		Metrics:    make([]DefinitionDescription, 0, len(s.metrics)),
		Filters:    make([]DefinitionDescription, 0, len(s.filters)),
	}
	for _, d := range s.dimensions {
		dd := DefinitionDescription{Identifier: d.Identifier(), Name: d.Name(), Type: d.Type(), Description: d.Description()}
		switch x := d.(type) {
		case *ColumnDimension:
			dd.Kind = "column"
		case *DateBucketDimension:
			dd.Kind = "date_bucket"
			dd.Granularities = x.Granularities()
			dd.DefaultGranularity = x.DefaultGranularity()
		}
		desc.Dimensions = append(desc.Dimensions, dd)
	}
	for _, m := range s.metrics {
		md := DefinitionDescription{Identifier: m.Identifier(), Name: m.Name(), Type: m.Type(), Description: m.Description()}
		switch m.(type) {
		case *CountMetric:
			md.Kind = "count"
		case *MeanMetric:
			md.Kind = "mean"
		case *SumMetric:
			md.Kind = "sum"
		}
		desc.Metrics = append(desc.Metrics, md)
	}
	for _, f := range s.filters {
		fd := DefinitionDescription{Identifier: f.Identifier(), Name: f.Name(), Type: f.Type(), Description: f.Description()}
		switch x := f.(type) {
		case *ExactMatchFilter:
			fd.Kind = "exact_match"
			fd.MaxSize = x.MaxSize()
		case *RangeFilter:
			fd.Kind = "range"
		}
		desc.Filters = append(desc.Filters, fd)
	}
	return desc
}
