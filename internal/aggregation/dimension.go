package aggregation

import "fmt"

// Dimension is a named way to compute a group-by key. It is implemented by
// *ColumnDimension and *DateBucketDimension only.
type Dimension interface {
	Identifier() string
	Name() string
	Type() ValueType
	Description() string
	// Expression is the ungrouped value the dimension is computed from.
	Expression() Expr
	// Scopes are the adjustments applied when the dimension is selected.
	Scopes() []ScopeAdjustment
	// Format maps a grouped value to its display value.
	Format(Value) Value

	validate() []string
}

type dimensionBase struct {
	definition
	expr      Expr
	formatter Formatter
	scopes    []ScopeAdjustment
}

func newDimensionBase(identifier string, t ValueType, o options) dimensionBase {
	expr := o.expr
	if expr.IsZero() {
		expr = Ref(identifier)
	}
	return dimensionBase{
		definition: definition{identifier: identifier, name: o.name, valueType: t, description: o.description},
		expr:       expr,
		formatter:  o.formatter,
		scopes:     o.scopes,
	}
}

func (d *dimensionBase) Expression() Expr { return d.expr }

func (d *dimensionBase) Scopes() []ScopeAdjustment {
	return append([]ScopeAdjustment(nil), d.scopes...)
}

func (d *dimensionBase) Format(v Value) Value {
	if d.formatter == nil || !v.Valid {
		return v
	}
	return d.formatter(v)
}

func (d *dimensionBase) validate() []string {
	var errs []string
	if !d.valueType.Valid() {
		errs = append(errs, fmt.Sprintf("dimension '%s' has unknown type %q", d.identifier, d.valueType))
	}
	return append(errs, checkScopes("dimension", d.identifier, d.scopes)...)
}

// ColumnDimension groups by a column or expression as is.
type ColumnDimension struct {
	dimensionBase
}

// Column declares a dimension grouping by the column named identifier, or
// by the WithExpression override.
func Column(identifier string, t ValueType, opts ...Option) *ColumnDimension {
	return &ColumnDimension{dimensionBase: newDimensionBase(identifier, t, collect(opts))}
}

// DateBucketDimension groups by a timestamp truncated to a granularity.
type DateBucketDimension struct {
	dimensionBase
	granularities []Granularity
}

// DateBucket declares a time-bucketed dimension. The first granularity is the
// default; no granularities means DefaultGranularities.
func DateBucket(identifier string, granularities []Granularity, opts ...Option) *DateBucketDimension {
	if len(granularities) == 0 {
		granularities = DefaultGranularities
	}
	return &DateBucketDimension{
		dimensionBase: newDimensionBase(identifier, TypeTimestamp, collect(opts)),
		granularities: append([]Granularity(nil), granularities...),
	}
}

// Granularities returns the allowed granularities, default first.
func (d *DateBucketDimension) Granularities() []Granularity {
	return append([]Granularity(nil), d.granularities...)
}

// DefaultGranularity is used when a request names none.
func (d *DateBucketDimension) DefaultGranularity() Granularity {
	return d.granularities[0]
}

// Allows reports whether g is one of the declared granularities.
func (d *DateBucketDimension) Allows(g Granularity) bool {
	for _, x := range d.granularities {
		if x == g {
			return true
		}
	}
	return false
}

func (d *DateBucketDimension) validate() []string {
	errs := d.dimensionBase.validate()
	seen := map[Granularity]bool{}
	for _, g := range d.granularities {
		if !g.Valid() {
			errs = append(errs, fmt.Sprintf("dimension '%s' declares unknown granularity %q", d.identifier, g))
		}
		if seen[g] {
			errs = append(errs, fmt.Sprintf("dimension '%s' declares granularity %q twice", d.identifier, g))
		}
		seen[g] = true
	}
	return errs
}
