package aggregation

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DefaultMaxSize is the exact match value limit when MaxSize is not given.
const DefaultMaxSize = 100

// Filter is a named constraint on the rows that take part in a query. It is
// implemented by *ExactMatchFilter and *RangeFilter only.
type Filter interface {
	Identifier() string
	Name() string
	Type() ValueType
	Description() string
	Expression() Expr
	Scopes() []ScopeAdjustment
	// Validate checks caller-supplied values and returns them normalized to
	// the declared type, or the problems found.
	Validate(values []any) ([]any, []string)

	validate() []string
}

type filterBase struct {
	definition
	expr   Expr
	scopes []ScopeAdjustment
}

func newFilterBase(identifier string, t ValueType, o options) filterBase {
	expr := o.expr
	if expr.IsZero() {
		expr = Ref(identifier)
	}
	return filterBase{
		definition: definition{identifier: identifier, name: o.name, valueType: t, description: o.description},
		expr:       expr,
		scopes:     o.scopes,
	}
}

func (f *filterBase) Expression() Expr { return f.expr }

func (f *filterBase) Scopes() []ScopeAdjustment {
	return append([]ScopeAdjustment(nil), f.scopes...)
}

func (f *filterBase) validate() []string {
	var errs []string
	if !f.valueType.Valid() {
		errs = append(errs, fmt.Sprintf("filter '%s' has unknown type %q", f.identifier, f.valueType))
	}
	return append(errs, checkScopes("filter", f.identifier, f.scopes)...)
}

// normalize converts each non-nil value to the declared type's Go form.
func (f *filterBase) normalize(values []any) ([]any, []string) {
	out := make([]any, len(values))
	var errs []string
	for i, v := range values {
		if v == nil {
			continue
		}
		n, err := normalizeValue(f.valueType, v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Value %v is not a valid %s for filter '%s'", v, f.valueType, f.identifier))
			continue
		}
		out[i] = n
	}
	return out, errs
}

// ExactMatchFilter keeps rows whose expression equals one of the given values.
type ExactMatchFilter struct {
	filterBase
	maxSize int
}

// ExactMatch declares a set-membership filter over the column named
// identifier, or the WithExpression override.
func ExactMatch(identifier string, t ValueType, opts ...Option) *ExactMatchFilter {
	o := collect(opts)
	maxSize := o.maxSize
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	return &ExactMatchFilter{filterBase: newFilterBase(identifier, t, o), maxSize: maxSize}
}

// MaxSize is the maximum number of values accepted.
func (f *ExactMatchFilter) MaxSize() int { return f.maxSize }

// Validate implements Filter.
func (f *ExactMatchFilter) Validate(values []any) ([]any, []string) {
	if len(values) == 0 {
		return nil, []string{fmt.Sprintf("Values are required for filter '%s'", f.identifier)}
	}
	if len(values) > f.maxSize {
		return nil, []string{fmt.Sprintf("Values maximum size of %d exceeded for filter '%s'", f.maxSize, f.identifier)}
	}
	for _, v := range values {
		if v == nil {
			return nil, []string{fmt.Sprintf("Null values are not allowed for filter '%s'", f.identifier)}
		}
	}
	return f.normalize(values)
}

func (f *ExactMatchFilter) validate() []string {
	errs := f.filterBase.validate()
	if f.maxSize < 1 {
		errs = append(errs, fmt.Sprintf("filter '%s' max size must be positive", f.identifier))
	}
	return errs
}

// RangeFilter keeps rows with from <= expression < to. Either bound may be
// nil to leave that side open.
type RangeFilter struct {
	filterBase
}

// Range declares a half-open range filter over an ordered column.
func Range(identifier string, t ValueType, opts ...Option) *RangeFilter {
	return &RangeFilter{filterBase: newFilterBase(identifier, t, collect(opts))}
}

// Validate implements Filter.
func (f *RangeFilter) Validate(values []any) ([]any, []string) {
	if len(values) != 2 {
		return nil, []string{fmt.Sprintf("Filter '%s' expects exactly two values [from, to]", f.identifier)}
	}
	if values[0] == nil && values[1] == nil {
		return nil, []string{fmt.Sprintf("Filter '%s' requires at least one bound", f.identifier)}
	}
	return f.normalize(values)
}

func (f *RangeFilter) validate() []string {
	errs := f.filterBase.validate()
	if f.valueType == TypeBoolean {
		errs = append(errs, fmt.Sprintf("filter '%s' cannot range over booleans", f.identifier))
	}
	return errs
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// normalizeValue checks v against t without lossy coercion: an integer filter
// accepts Go integers, json.Number integers and integral float64s (JSON
// numbers), never strings.
func normalizeValue(t ValueType, v any) (any, error) {
	switch t {
	case TypeInteger:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint8:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint:
			if uint64(x) <= math.MaxInt64 {
				return int64(x), nil
			}
		case uint64:
			if x <= math.MaxInt64 {
				return int64(x), nil
			}
		case json.Number:
			return x.Int64()
		case float64:
			if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				return int64(x), nil
			}
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		default:
			if i, err := normalizeValue(TypeInteger, v); err == nil {
				return float64(i.(int64)), nil
			}
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			for _, layout := range timeLayouts {
				if ts, err := time.Parse(layout, x); err == nil {
					return ts.UTC(), nil
				}
			}
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) is not a valid %s", v, v, t)
}
