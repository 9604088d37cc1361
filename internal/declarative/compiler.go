package declarative

import (
	"strings"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/domain"
)

// Definition is a compiled schema document: the schema and the base scope
// its queries run against.
type Definition struct {
	Schema      *aggregation.Schema
	Scope       aggregation.Scope
	Description string
}

// Name returns the schema name.
func (d *Definition) Name() string { return d.Schema.Name() }

// Compile validates doc and builds its schema and scope.
func Compile(doc *SchemaDoc) (*Definition, error) {
	if errs := Validate(doc); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, domain.ErrValidation("schema %q: %s", doc.Metadata.Name, strings.Join(msgs, "; "))
	}

	spec := doc.Spec
	scope := aggregation.From(spec.Relation)
	if spec.Alias != "" {
		scope = scope.As(spec.Alias)
	}
	for _, j := range spec.Joins {
		scope = scope.Join(j)
	}
	for _, w := range spec.Where {
		scope = scope.Where(w)
	}

	b := aggregation.NewSchemaBuilder(doc.Metadata.Name)
	for _, d := range spec.Dimensions {
		b.AddDimension(compileDimension(d, scope.Alias()))
	}
	for _, m := range spec.Metrics {
		b.AddMetric(compileMetric(m))
	}
	for _, f := range spec.Filters {
		b.AddFilter(compileFilter(f, scope.Alias()))
	}
	schema, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Definition{Schema: schema, Scope: scope, Description: doc.Metadata.Description}, nil
}

func expression(column, sql string) aggregation.Option {
	switch {
	case sql != "":
		return aggregation.WithExpression(aggregation.Raw(sql))
	case column != "":
		return aggregation.WithExpression(aggregation.Ref(column))
	}
	return nil
}

func joinScopes(joins []string) aggregation.Option {
	if len(joins) == 0 {
		return nil
	}
	adjs := make([]aggregation.ScopeAdjustment, len(joins))
	for i, j := range joins {
		adjs[i] = aggregation.JoinScope(j)
	}
	return aggregation.WithScope(adjs...)
}

// presence returns a RequirePresent adjustment over the definition's
// expression, qualifying bare columns with the relation alias.
func presence(required bool, alias, identifier, column, sql string) aggregation.Option {
	if !required {
		return nil
	}
	expr := alias + "." + identifier
	switch {
	case sql != "":
		expr = "(" + sql + ")"
	case strings.Contains(column, "."):
		expr = column
	case column != "":
		expr = alias + "." + column
	}
	return aggregation.WithScope(aggregation.RequirePresent(expr))
}

func compileDimension(d DimensionSpec, alias string) aggregation.Dimension {
	opts := []aggregation.Option{
		aggregation.WithName(d.Name),
		aggregation.WithDescription(d.Description),
		expression(d.Column, d.SQL),
		joinScopes(d.Joins),
		presence(d.RequirePresent, alias, d.Identifier, d.Column, d.SQL),
	}
	if d.Kind == DimensionKindDateBucket {
		grans := make([]aggregation.Granularity, len(d.Granularities))
		for i, g := range d.Granularities {
			grans[i] = aggregation.Granularity(g)
		}
		return aggregation.DateBucket(d.Identifier, grans, opts...)
	}
	if len(d.Labels) > 0 {
		opts = append(opts, aggregation.WithFormatter(aggregation.LabelFormatter(d.Labels)))
	}
	return aggregation.Column(d.Identifier, aggregation.ValueType(d.Type), opts...)
}

func compileMetric(m MetricSpec) aggregation.Metric {
	opts := []aggregation.Option{
		aggregation.WithName(m.Name),
		aggregation.WithDescription(m.Description),
	}
	switch m.Kind {
	case MetricKindCount:
		if m.Prefix != "" {
			opts = append(opts, aggregation.Named(m.Prefix))
		}
		if m.Where != "" {
			opts = append(opts, aggregation.CountWhere(aggregation.Raw(m.Where)))
		}
		return aggregation.Count(opts...)
	case MetricKindMean:
		opts = append(opts, expression("", m.SQL))
		return aggregation.Mean(m.Column, aggregation.ValueType(m.Type), opts...)
	default:
		opts = append(opts, expression("", m.SQL))
		return aggregation.Sum(m.Column, aggregation.ValueType(m.Type), opts...)
	}
}

func compileFilter(f FilterSpec, alias string) aggregation.Filter {
	opts := []aggregation.Option{
		aggregation.WithName(f.Name),
		aggregation.WithDescription(f.Description),
		expression(f.Column, f.SQL),
		joinScopes(f.Joins),
		presence(f.RequirePresent, alias, f.Identifier, f.Column, f.SQL),
	}
	if f.Kind == FilterKindRange {
		return aggregation.Range(f.Identifier, aggregation.ValueType(f.Type), opts...)
	}
	if f.MaxSize > 0 {
		opts = append(opts, aggregation.MaxSize(f.MaxSize))
	}
	return aggregation.ExactMatch(f.Identifier, aggregation.ValueType(f.Type), opts...)
}
