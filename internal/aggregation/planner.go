package aggregation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Planner validates requests against a Schema and compiles them into SQL.
// It holds no per-request state and is safe for concurrent use.
type Planner struct {
	schema  *Schema
	dialect Dialect
}

// NewPlanner creates a Planner for schema rendering SQL in dialect.
func NewPlanner(schema *Schema, dialect Dialect) *Planner {
	return &Planner{schema: schema, dialect: dialect}
}

// Schema returns the schema requests are validated against.
func (p *Planner) Schema() *Schema { return p.schema }

// Dialect returns the SQL dialect.
func (p *Planner) Dialect() Dialect { return p.dialect }

// Plan is a compiled request: the SQL to run once and what its columns mean.
type Plan struct {
	ID   string
	SQL  string
	Args []any

	dimensions []plannedDimension
	metrics    []Metric
}

type plannedDimension struct {
	def         Dimension
	granularity Granularity
}

type plannedFilter struct {
	def    Filter
	values []any
}

// Granularities returns the granularity used for each selected dimension,
// empty for column dimensions.
func (p *Plan) Granularities() []Granularity {
	out := make([]Granularity, len(p.dimensions))
	for i, d := range p.dimensions {
		out[i] = d.granularity
	}
	return out
}

// Compile validates req and compiles it over scope. All validation problems
// are collected before giving up, so the returned *Errors lists every issue.
func (p *Planner) Compile(scope Scope, req Request) (*Plan, *Errors) {
	errs := &Errors{}
	dims := p.resolveDimensions(req.Dimensions, errs)
	metrics := p.resolveMetrics(req.Metrics, errs)
	filters := p.resolveFilters(req.Filters, errs)
	order := p.resolveOrder(req, errs)
	if req.Limit < 0 {
		errs.Limit = append(errs.Limit, fmt.Sprintf("Limit must not be negative, got %d", req.Limit))
	}
	if !errs.Empty() {
		return nil, errs
	}

	var ss scopeSet
	for _, d := range dims {
		ss.add(d.def.Scopes()...)
	}
	scope = p.applyFilters(scope, &ss, filters)
	alias := scope.Alias()

	selects := make([]string, 0, len(dims)+len(metrics))
	var args []any
	for i, d := range dims {
		frag, err := p.dimensionSQL(alias, d)
		if err != nil {
			errs.Dimensions = append(errs.Dimensions, err.Error())
			continue
		}
		selects = append(selects, frag.SQL+" AS "+p.dialect.QuoteIdentifier(dimensionAlias(i)))
		args = append(args, frag.Args...)
	}
	if !errs.Empty() {
		return nil, errs
	}
	for i, m := range metrics {
		frag := p.metricSQL(alias, m)
		selects = append(selects, frag.SQL+" AS "+p.dialect.QuoteIdentifier(metricAlias(i)))
		args = append(args, frag.Args...)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString(scope.fromSQL(p.dialect))
	where, whereArgs := scope.whereSQL()
	b.WriteString(where)
	args = append(args, whereArgs...)

	if len(dims) > 0 {
		positions := make([]string, len(dims))
		for i := range dims {
			positions[i] = strconv.Itoa(i + 1)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(positions, ", "))
	}
	if orderBy := p.orderSQL(order, len(dims)); orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}

	return &Plan{
		ID:         uuid.NewString(),
		SQL:        sqlx.Rebind(p.dialect.BindType(), b.String()),
		Args:       p.bindArgs(args),
		dimensions: dims,
		metrics:    metrics,
	}, nil
}

func dimensionAlias(i int) string { return "d" + strconv.Itoa(i) }
func metricAlias(i int) string    { return "m" + strconv.Itoa(i) }

func (p *Planner) resolveDimensions(sels []DimensionSelection, errs *Errors) []plannedDimension {
	if len(sels) > MaxDimensions {
		errs.Dimensions = append(errs.Dimensions, fmt.Sprintf("maximum two dimensions are supported, got %d", len(sels)))
	}
	out := make([]plannedDimension, 0, len(sels))
	for _, sel := range sels {
		def, ok := p.schema.Dimension(sel.Identifier)
		if !ok {
			errs.Dimensions = append(errs.Dimensions, fmt.Sprintf("Unknown dimension identifier '%s'", sel.Identifier))
			continue
		}
		pd := plannedDimension{def: def}
		switch d := def.(type) {
		case *DateBucketDimension:
			pd.granularity = sel.Granularity
			if pd.granularity == "" {
				pd.granularity = d.DefaultGranularity()
			}
			if !d.Allows(pd.granularity) {
				errs.Dimensions = append(errs.Dimensions, fmt.Sprintf("Granularity '%s' is not allowed for dimension '%s'", pd.granularity, sel.Identifier))
				continue
			}
		case *ColumnDimension:
			if sel.Granularity != "" {
				errs.Dimensions = append(errs.Dimensions, fmt.Sprintf("Dimension '%s' does not support granularity", sel.Identifier))
				continue
			}
		}
		out = append(out, pd)
	}
	return out
}

func (p *Planner) resolveMetrics(sels []MetricSelection, errs *Errors) []Metric {
	if len(sels) == 0 {
		errs.Metrics = append(errs.Metrics, "at least one metric is required")
	}
	out := make([]Metric, 0, len(sels))
	for _, sel := range sels {
		m, ok := p.schema.Metric(sel.Identifier)
		if !ok {
			errs.Metrics = append(errs.Metrics, fmt.Sprintf("Unknown metric identifier '%s'", sel.Identifier))
			continue
		}
		out = append(out, m)
	}
	return out
}

func (p *Planner) resolveFilters(apps []FilterApplication, errs *Errors) []plannedFilter {
	out := make([]plannedFilter, 0, len(apps))
	for _, app := range apps {
		f, ok := p.schema.Filter(app.Identifier)
		if !ok {
			errs.Filters = append(errs.Filters, fmt.Sprintf("Unknown filter identifier '%s'", app.Identifier))
			continue
		}
		values, problems := f.Validate(app.Values)
		if len(problems) > 0 {
			errs.Filters = append(errs.Filters, problems...)
			continue
		}
		out = append(out, plannedFilter{def: f, values: values})
	}
	return out
}

type plannedOrder struct {
	alias     string
	direction Direction
}

func (p *Planner) resolveOrder(req Request, errs *Errors) []plannedOrder {
	out := make([]plannedOrder, 0, len(req.Order))
	for _, clause := range req.Order {
		if !clause.Direction.Valid() {
			errs.Order = append(errs.Order, fmt.Sprintf("Invalid direction '%s' for order '%s'", clause.Direction, clause.Identifier))
			continue
		}
		dimIdx := indexOfDimension(req.Dimensions, clause.Identifier)
		metricIdx := indexOfMetric(req.Metrics, clause.Identifier)

		switch clause.Kind {
		case OrderDimension:
			if dimIdx < 0 {
				errs.Order = append(errs.Order, p.unselected("dimension", clause.Identifier))
				continue
			}
			out = append(out, plannedOrder{alias: dimensionAlias(dimIdx), direction: clause.Direction})
		case OrderMetric:
			if metricIdx < 0 {
				errs.Order = append(errs.Order, p.unselected("metric", clause.Identifier))
				continue
			}
			out = append(out, plannedOrder{alias: metricAlias(metricIdx), direction: clause.Direction})
		case "":
			switch {
			case metricIdx >= 0:
				out = append(out, plannedOrder{alias: metricAlias(metricIdx), direction: clause.Direction})
			case dimIdx >= 0:
				out = append(out, plannedOrder{alias: dimensionAlias(dimIdx), direction: clause.Direction})
			default:
				errs.Order = append(errs.Order, fmt.Sprintf("Order identifier '%s' is not a selected dimension or metric", clause.Identifier))
			}
		default:
			errs.Order = append(errs.Order, fmt.Sprintf("Unknown order type '%s' for '%s'", clause.Kind, clause.Identifier))
		}
	}
	return out
}

func (p *Planner) unselected(kind, identifier string) string {
	var known bool
	if kind == "dimension" {
		_, known = p.schema.Dimension(identifier)
	} else {
		_, known = p.schema.Metric(identifier)
	}
	if !known {
		return fmt.Sprintf("Unknown %s identifier '%s'", kind, identifier)
	}
	return fmt.Sprintf("%s '%s' must be selected to order by it", strings.ToUpper(kind[:1])+kind[1:], identifier)
}

func indexOfDimension(sels []DimensionSelection, identifier string) int {
	for i, s := range sels {
		if s.Identifier == identifier {
			return i
		}
	}
	return -1
}

func indexOfMetric(sels []MetricSelection, identifier string) int {
	for i, s := range sels {
		if s.Identifier == identifier {
			return i
		}
	}
	return -1
}

// applyFilters applies every scope adjustment once, then the filter constraints.
func (p *Planner) applyFilters(scope Scope, ss *scopeSet, filters []plannedFilter) Scope {
	for _, f := range filters {
		ss.add(f.def.Scopes()...)
	}
	scope = ss.apply(scope)
	alias := scope.Alias()
	for _, f := range filters {
		expr := f.def.Expression().render(alias, p.dialect)
		switch f.def.(type) {
		case *ExactMatchFilter:
			if len(f.values) == 1 {
				scope = scope.Where(expr.SQL+" = ?", append(expr.Args, f.values[0])...)
				continue
			}
			placeholders, inArgs := inClauseArgs(f.values)
			scope = scope.Where(expr.SQL+" IN ("+placeholders+")", append(expr.Args, inArgs...)...)
		case *RangeFilter:
			if from := f.values[0]; from != nil {
				scope = scope.Where(expr.SQL+" >= ?", append(append([]any(nil), expr.Args...), from)...)
			}
			if to := f.values[1]; to != nil {
				scope = scope.Where(expr.SQL+" < ?", append(append([]any(nil), expr.Args...), to)...)
			}
		}
	}
	return scope
}

// inClauseArgs returns "?, ?, ..." for values and the matching args.
func inClauseArgs(values []any) (string, []any) {
	ph := make([]string, len(values))
	for i := range values {
		ph[i] = "?"
	}
	return strings.Join(ph, ", "), append([]any(nil), values...)
}

func (p *Planner) dimensionSQL(alias string, d plannedDimension) (Fragment, error) {
	expr := d.def.Expression().render(alias, p.dialect)
	switch d.def.(type) {
	case *DateBucketDimension:
		return p.dialect.TruncateTime(d.granularity, expr)
	default:
		return expr, nil
	}
}

func (p *Planner) metricSQL(alias string, m Metric) Fragment {
	switch x := m.(type) {
	case *CountMetric:
		if x.where.IsZero() {
			return Fragment{SQL: "COUNT(*)"}
		}
		cond := x.where.render(alias, p.dialect)
		return Fragment{SQL: "COUNT(CASE WHEN (" + cond.SQL + ") THEN 1 END)", Args: cond.Args}
	case *MeanMetric:
		expr := x.expr.render(alias, p.dialect)
		return Fragment{SQL: "AVG(" + p.dialect.CastFloat(expr.SQL) + ")", Args: expr.Args}
	case *SumMetric:
		expr := x.expr.render(alias, p.dialect)
		return Fragment{SQL: "COALESCE(SUM(" + expr.SQL + "), 0)", Args: expr.Args}
	}
	panic(fmt.Sprintf("aggregation: unsupported metric type %T", m))
}

// orderSQL renders the requested order followed by every dimension not yet
// ordered, ascending, so groups with equal sort keys come back in a stable order.
func (p *Planner) orderSQL(order []plannedOrder, dimCount int) string {
	parts := make([]string, 0, len(order)+dimCount)
	used := map[string]bool{}
	for _, o := range order {
		if used[o.alias] {
			continue
		}
		used[o.alias] = true
		parts = append(parts, p.dialect.QuoteIdentifier(o.alias)+" "+o.direction.sql())
	}
	for i := 0; i < dimCount; i++ {
		alias := dimensionAlias(i)
		if !used[alias] {
			parts = append(parts, p.dialect.QuoteIdentifier(alias)+" ASC")
		}
	}
	return strings.Join(parts, ", ")
}

func (p *Planner) bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			out[i] = p.dialect.BindTime(t)
			continue
		}
		out[i] = a
	}
	return out
}

// RawRequest asks for plain rows: the projected columns of every row that
// passes the filters, without grouping.
type RawRequest struct {
	Projection []string            `json:"projection" yaml:"projection"`
	Filters    []FilterApplication `json:"filters,omitempty" yaml:"filters,omitempty"`
	Order      []ColumnOrder       `json:"order,omitempty" yaml:"order,omitempty"`
	Limit      int                 `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// ColumnOrder sorts raw rows by a projected column.
type ColumnOrder struct {
	Column    string    `json:"column" yaml:"column"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
}

var projectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CompileProjection compiles a raw request: filters and their scope
// adjustments are applied exactly as in Compile, dimensions and metrics are
// not involved.
func (p *Planner) CompileProjection(scope Scope, req RawRequest) (*Plan, *Errors) {
	errs := &Errors{}
	if len(req.Projection) == 0 {
		errs.Projection = append(errs.Projection, "at least one projected column is required")
	}
	names := map[string]bool{}
	for _, col := range req.Projection {
		if !projectionPattern.MatchString(col) {
			errs.Projection = append(errs.Projection, fmt.Sprintf("Invalid projected column '%s'", col))
			continue
		}
		name := outputName(col)
		if names[name] {
			errs.Projection = append(errs.Projection, fmt.Sprintf("Duplicate projected column name '%s'", name))
			continue
		}
		names[name] = true
	}
	filters := p.resolveFilters(req.Filters, errs)
	for _, o := range req.Order {
		switch {
		case !o.Direction.Valid():
			errs.Order = append(errs.Order, fmt.Sprintf("Invalid direction '%s' for order '%s'", o.Direction, o.Column))
		case !names[o.Column]:
			errs.Order = append(errs.Order, fmt.Sprintf("Order column '%s' is not projected", o.Column))
		}
	}
	if req.Limit < 0 {
		errs.Limit = append(errs.Limit, fmt.Sprintf("Limit must not be negative, got %d", req.Limit))
	}
	if !errs.Empty() {
		return nil, errs
	}

	var ss scopeSet
	scope = p.applyFilters(scope, &ss, filters)

	cols := make([]string, len(req.Projection))
	for i, col := range req.Projection {
		cols[i] = Ref(col).render(scope.Alias(), p.dialect).SQL + " AS " + p.dialect.QuoteIdentifier(outputName(col))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(scope.fromSQL(p.dialect))
	where, args := scope.whereSQL()
	b.WriteString(where)
	if len(req.Order) > 0 {
		parts := make([]string, len(req.Order))
		for i, o := range req.Order {
			parts[i] = p.dialect.QuoteIdentifier(o.Column) + " " + o.Direction.sql()
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}

	return &Plan{
		ID:   uuid.NewString(),
		SQL:  sqlx.Rebind(p.dialect.BindType(), b.String()),
		Args: p.bindArgs(args),
	}, nil
}

func outputName(col string) string {
	if i := strings.LastIndex(col, "."); i >= 0 {
		return col[i+1:]
	}
	return col
}
