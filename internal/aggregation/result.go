package aggregation

import (
	"encoding/json"
	"strings"

	"duck-analytics/internal/domain"
)

// Errors groups validation messages by the request section they concern.
type Errors struct {
	Dimensions []string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Metrics    []string `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Filters    []string `json:"filters,omitempty" yaml:"filters,omitempty"`
	Order      []string `json:"order,omitempty" yaml:"order,omitempty"`
	Limit      []string `json:"limit,omitempty" yaml:"limit,omitempty"`
	Projection []string `json:"projection,omitempty" yaml:"projection,omitempty"`
}

// Empty reports whether no section has errors.
func (e *Errors) Empty() bool {
	return e == nil || len(e.Dimensions)+len(e.Metrics)+len(e.Filters)+len(e.Order)+len(e.Limit)+len(e.Projection) == 0
}

// Err converts the errors into a *domain.ValidationError, or nil when empty.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	var parts []string
	add := func(section string, msgs []string) {
		if len(msgs) > 0 {
			parts = append(parts, section+": "+strings.Join(msgs, ", "))
		}
	}
	add("dimensions", e.Dimensions)
	add("metrics", e.Metrics)
	add("filters", e.Filters)
	add("order", e.Order)
	add("limit", e.Limit)
	add("projection", e.Projection)
	return domain.ErrValidation("invalid aggregation request: %s", strings.Join(parts, "; ")).
		WithSections(map[string][]string{
			"dimensions": e.Dimensions,
			"metrics":    e.Metrics,
			"filters":    e.Filters,
			"order":      e.Order,
			"limit":      e.Limit,
			"projection": e.Projection,
		})
}

// Row is one group: dimension values then metric values, each in request order.
type Row struct {
	Dimensions []Value `json:"dimensions" yaml:"dimensions"`
	Metrics    []Value `json:"metrics" yaml:"metrics"`
}

// Result is either a successful list of rows or a set of validation errors.
type Result struct {
	Data   []Row
	Errors *Errors
}

// Success reports whether the request was valid and executed.
func (r *Result) Success() bool {
	return r.Errors.Empty()
}

// Payload returns {data} on success and {errors} on failure.
func (r *Result) Payload() any {
	if r.Success() {
		data := r.Data
		if data == nil {
			data = []Row{}
		}
		return struct {
			Data []Row `json:"data" yaml:"data"`
		}{Data: data}
	}
	return struct {
		Errors *Errors `json:"errors" yaml:"errors"`
	}{Errors: r.Errors}
}

// MarshalJSON implements json.Marshaler using Payload.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload())
}
