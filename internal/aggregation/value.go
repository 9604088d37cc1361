package aggregation

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Value is a typed result value. It serializes as a single-key object named
// after its type, e.g. {"integer_value": 1} or {"timestamp_value": null}.
type Value struct {
	Type  ValueType
	Valid bool
	v     any
}

// IntegerValue returns a non-null integer value.
func IntegerValue(i int64) Value { return Value{Type: TypeInteger, Valid: true, v: i} }

// FloatValue returns a non-null float value.
func FloatValue(f float64) Value { return Value{Type: TypeFloat, Valid: true, v: f} }

// StringValue returns a non-null string value.
func StringValue(s string) Value { return Value{Type: TypeString, Valid: true, v: s} }

// TimestampValue returns a non-null timestamp value, normalized to UTC.
func TimestampValue(t time.Time) Value { return Value{Type: TypeTimestamp, Valid: true, v: t.UTC()} }

// BooleanValue returns a non-null boolean value.
func BooleanValue(b bool) Value { return Value{Type: TypeBoolean, Valid: true, v: b} }

// NullValue returns a null value of type t.
func NullValue(t ValueType) Value { return Value{Type: t} }

// Interface returns the underlying Go value (int64, float64, string,
// time.Time or bool), or nil for nulls.
func (v Value) Interface() any {
	if !v.Valid {
		return nil
	}
	return v.v
}

// Int64 returns the integer payload; zero when the value is not an integer.
func (v Value) Int64() int64 {
	i, _ := v.v.(int64)
	return i
}

// Float64 returns the float payload; integers are widened.
func (v Value) Float64() float64 {
	switch x := v.v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

// Text returns the string payload; zero when the value is not a string.
func (v Value) Text() string {
	s, _ := v.v.(string)
	return s
}

// Time returns the timestamp payload.
func (v Value) Time() time.Time {
	t, _ := v.v.(time.Time)
	return t
}

// Bool returns the boolean payload.
func (v Value) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

// Display renders the value for human output; nulls render as "NULL".
func (v Value) Display() string {
	if !v.Valid {
		return "NULL"
	}
	switch x := v.v.(type) {
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v.v)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{v.Type.key(): v.Interface()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("typed value must have exactly one key, got %d", len(m))
	}
	for k, raw := range m {
		t := ValueType(strings.TrimSuffix(k, "_value"))
		if !t.Valid() || !strings.HasSuffix(k, "_value") {
			return fmt.Errorf("unknown typed value key %q", k)
		}
		var x any
		if err := json.Unmarshal(raw, &x); err != nil {
			return err
		}
		out, err := convertValue(t, x)
		if err != nil {
			return err
		}
		*v = out
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	return map[string]any{v.Type.key(): v.Interface()}, nil
}

// convertValue converts a raw driver value into a Value of type t.
func convertValue(t ValueType, raw any) (Value, error) {
	if raw == nil {
		return NullValue(t), nil
	}
	switch x := raw.(type) {
	case []byte:
		raw = string(x)
	case *big.Int:
		// HUGEINT sums from DuckDB
		raw = x.String()
	case interface{ Float64() float64 }:
		// DuckDB DECIMAL
		raw = x.Float64()
	}
	switch t {
	case TypeInteger:
		if f, ok := raw.(float64); ok {
			if f != math.Trunc(f) {
				return Value{}, fmt.Errorf("cannot convert %v to integer without truncation", f)
			}
		}
		i, err := cast.ToInt64E(raw)
		if err != nil {
			return Value{}, fmt.Errorf("convert to integer: %w", err)
		}
		return IntegerValue(i), nil
	case TypeFloat:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return Value{}, fmt.Errorf("convert to float: %w", err)
		}
		return FloatValue(f), nil
	case TypeString:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Value{}, fmt.Errorf("convert to string: %w", err)
		}
		return StringValue(s), nil
	case TypeTimestamp:
		ts, err := cast.ToTimeE(raw)
		if err != nil {
			return Value{}, fmt.Errorf("convert to timestamp: %w", err)
		}
		return TimestampValue(ts), nil
	case TypeBoolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return Value{}, fmt.Errorf("convert to boolean: %w", err)
		}
		return BooleanValue(b), nil
	}
	return Value{}, fmt.Errorf("unknown value type %q", t)
}

// ParseValue parses a textual value (CLI flags, query strings) as type t.
func ParseValue(t ValueType, s string) (any, error) {
	switch t {
	case TypeInteger:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case TypeString:
		return s, nil
	case TypeTimestamp:
		return cast.ToTimeE(strings.TrimSpace(s))
	case TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	return nil, fmt.Errorf("unknown value type %q", t)
}
