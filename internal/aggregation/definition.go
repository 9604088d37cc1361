package aggregation

import (
	"strings"
)

// definition holds the metadata every dimension, metric and filter carries.
type definition struct {
	identifier  string
	name        string
	valueType   ValueType
	description string
}

// Identifier is the stable name requests refer to.
func (d definition) Identifier() string { return d.identifier }

// Name is the display name; it defaults to a humanized identifier.
func (d definition) Name() string {
	if d.name != "" {
		return d.name
	}
	return humanize(d.identifier)
}

// Type is the declared value type.
func (d definition) Type() ValueType { return d.valueType }

// Description is free-form documentation.
func (d definition) Description() string { return d.description }

func humanize(identifier string) string {
	s := strings.ReplaceAll(identifier, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Option configures a dimension, metric or filter definition. Options that
// do not apply to a definition kind are ignored by its constructor.
type Option func(*options)

type options struct {
	name        string
	description string
	expr        Expr
	formatter   Formatter
	scopes      []ScopeAdjustment
	maxSize     int
	countName   string
	countWhere  Expr
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDescription sets the description.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// WithExpression overrides the default column expression.
func WithExpression(expr Expr) Option {
	return func(o *options) { o.expr = expr }
}

// WithFormatter maps each non-null grouped dimension value to its display value.
func WithFormatter(f Formatter) Option {
	return func(o *options) { o.formatter = f }
}

// WithScope adds scope adjustments applied whenever the definition is used.
func WithScope(adjustments ...ScopeAdjustment) Option {
	return func(o *options) { o.scopes = append(o.scopes, adjustments...) }
}

// MaxSize limits how many values an exact match filter accepts.
func MaxSize(n int) Option {
	return func(o *options) { o.maxSize = n }
}

// Named prefixes a count metric's identifier: Named("total") gives "total_count".
func Named(prefix string) Option {
	return func(o *options) { o.countName = prefix }
}

// CountWhere restricts a count metric to rows matching cond.
func CountWhere(cond Expr) Option {
	return func(o *options) { o.countWhere = cond }
}

// Formatter maps a raw grouped value to the value returned to callers.
type Formatter func(Value) Value

// LabelFormatter maps values to string labels by their display form, e.g.
// {"1": "opened"}. Values without a label are returned unchanged.
func LabelFormatter(labels map[string]string) Formatter {
	return func(v Value) Value {
		if label, ok := labels[v.Display()]; ok {
			return StringValue(label)
		}
		return v
	}
}
