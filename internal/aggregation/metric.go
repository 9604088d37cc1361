package aggregation

import "fmt"

// Metric is a named aggregation over the rows of a group. It is implemented
// by *CountMetric, *MeanMetric and *SumMetric only.
type Metric interface {
	Identifier() string
	Name() string
	Type() ValueType
	Description() string

	validate() []string
}

// CountMetric counts the rows of a group, optionally only those matching a condition.
type CountMetric struct {
	definition
	where Expr
}

// Count declares a row count. Its identifier is "count", or
// "<prefix>_count" with Named(prefix). The output type is integer.
func Count(opts ...Option) *CountMetric {
	o := collect(opts)
	identifier := "count"
	if o.countName != "" {
		identifier = o.countName + "_count"
	}
	return &CountMetric{
		definition: definition{identifier: identifier, name: o.name, valueType: TypeInteger, description: o.description},
		where:      o.countWhere,
	}
}

// Condition is the CountWhere condition; zero when every row counts.
func (m *CountMetric) Condition() Expr { return m.where }

func (m *CountMetric) validate() []string { return nil }

// MeanMetric is the arithmetic mean of a numeric column. The mean is always
// computed in floating point and returned as a float, whatever the column
// type: the mean of the integers 1 and 2 is 1.5.
type MeanMetric struct {
	definition
	columnType ValueType
	expr       Expr
}

// Mean declares the mean of column, whose values have type t. The
// identifier is "mean_<column>".
func Mean(column string, t ValueType, opts ...Option) *MeanMetric {
	o := collect(opts)
	expr := o.expr
	if expr.IsZero() {
		expr = Ref(column)
	}
	return &MeanMetric{
		definition: definition{identifier: "mean_" + column, name: o.name, valueType: TypeFloat, description: o.description},
		columnType: t,
		expr:       expr,
	}
}

// ColumnType is the declared type of the averaged column.
func (m *MeanMetric) ColumnType() ValueType { return m.columnType }

// Expression is the averaged expression.
func (m *MeanMetric) Expression() Expr { return m.expr }

func (m *MeanMetric) validate() []string {
	return validateNumeric(m.identifier, m.columnType)
}

// SumMetric is the sum of a numeric column; a group without values sums to 0.
type SumMetric struct {
	definition
	expr Expr
}

// Sum declares the sum of column; the result has the column's type t. The
// identifier is "sum_<column>".
func Sum(column string, t ValueType, opts ...Option) *SumMetric {
	o := collect(opts)
	expr := o.expr
	if expr.IsZero() {
		expr = Ref(column)
	}
	return &SumMetric{
		definition: definition{identifier: "sum_" + column, name: o.name, valueType: t, description: o.description},
		expr:       expr,
	}
}

// Expression is the summed expression.
func (m *SumMetric) Expression() Expr { return m.expr }

func (m *SumMetric) validate() []string {
	return validateNumeric(m.identifier, m.valueType)
}

func validateNumeric(identifier string, t ValueType) []string {
	if t != TypeInteger && t != TypeFloat {
		return []string{fmt.Sprintf("metric '%s' requires a numeric column, got %q", identifier, t)}
	}
	return nil
}
