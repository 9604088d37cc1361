package declarative

import (
	"fmt"
	"regexp"

	"duck-analytics/internal/aggregation"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "merge_requests.yaml: spec.dimensions[1]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks a parsed document. Problems the aggregation builder would
// also catch, such as duplicate identifiers, are reported here with the
// document path of the offending entry.
func Validate(doc *SchemaDoc) []ValidationError {
	var errs []ValidationError

	if !identifierPattern.MatchString(doc.Metadata.Name) {
		addErr(&errs, "metadata.name", "must be a lowercase identifier, got %q", doc.Metadata.Name)
	}
	if doc.Spec.Relation == "" {
		addErr(&errs, "spec.relation", "is required")
	}
	if len(doc.Spec.Metrics) == 0 {
		addErr(&errs, "spec.metrics", "at least one metric is required")
	}

	seen := map[string]bool{}
	for i, d := range doc.Spec.Dimensions {
		path := fmt.Sprintf("spec.dimensions[%d]", i)
		checkIdentifier(&errs, path, d.Identifier, seen)
		checkExpression(&errs, path, d.Column, d.SQL)
		switch d.Kind {
		case "", DimensionKindColumn:
			checkType(&errs, path, d.Type)
			if len(d.Granularities) > 0 {
				addErr(&errs, path, "granularities are only valid for date_bucket dimensions")
			}
		case DimensionKindDateBucket:
			if d.Type != "" && d.Type != string(aggregation.TypeTimestamp) {
				addErr(&errs, path, "date_bucket dimensions are timestamps, got type %q", d.Type)
			}
			for _, g := range d.Granularities {
				if !aggregation.Granularity(g).Valid() {
					addErr(&errs, path, "unknown granularity %q", g)
				}
			}
			if len(d.Labels) > 0 {
				addErr(&errs, path, "labels are only valid for column dimensions")
			}
		default:
			addErr(&errs, path, "unknown dimension kind %q", d.Kind)
		}
	}

	seen = map[string]bool{}
	for i, m := range doc.Spec.Metrics {
		path := fmt.Sprintf("spec.metrics[%d]", i)
		switch m.Kind {
		case MetricKindCount:
			if m.Column != "" || m.SQL != "" || m.Type != "" {
				addErr(&errs, path, "count metrics take only prefix and where")
			}
			id := "count"
			if m.Prefix != "" {
				id = m.Prefix + "_count"
			}
			checkIdentifier(&errs, path, id, seen)
		case MetricKindMean, MetricKindSum:
			if m.Column == "" {
				addErr(&errs, path, "%s metrics require a column", m.Kind)
				continue
			}
			if m.Prefix != "" || m.Where != "" {
				addErr(&errs, path, "prefix and where are only valid for count metrics")
			}
			checkType(&errs, path, m.Type)
			if t := aggregation.ValueType(m.Type); t.Valid() && t != aggregation.TypeInteger && t != aggregation.TypeFloat {
				addErr(&errs, path, "%s metrics require a numeric type, got %q", m.Kind, m.Type)
			}
			checkIdentifier(&errs, path, m.Kind+"_"+m.Column, seen)
		default:
			addErr(&errs, path, "unknown metric kind %q", m.Kind)
		}
	}

	seen = map[string]bool{}
	for i, f := range doc.Spec.Filters {
		path := fmt.Sprintf("spec.filters[%d]", i)
		checkIdentifier(&errs, path, f.Identifier, seen)
		checkExpression(&errs, path, f.Column, f.SQL)
		checkType(&errs, path, f.Type)
		switch f.Kind {
		case "", FilterKindExactMatch:
			if f.MaxSize < 0 {
				addErr(&errs, path, "max_size must be positive, got %d", f.MaxSize)
			}
		case FilterKindRange:
			if f.MaxSize != 0 {
				addErr(&errs, path, "max_size is only valid for exact_match filters")
			}
			if f.Type == string(aggregation.TypeBoolean) {
				addErr(&errs, path, "range filters cannot use boolean values")
			}
		default:
			addErr(&errs, path, "unknown filter kind %q", f.Kind)
		}
	}

	return errs
}

func checkIdentifier(errs *[]ValidationError, path, id string, seen map[string]bool) {
	if !identifierPattern.MatchString(id) {
		addErr(errs, path, "identifier must be lowercase letters, digits and underscores, got %q", id)
		return
	}
	if seen[id] {
		addErr(errs, path, "duplicate identifier %q", id)
	}
	seen[id] = true
}

func checkExpression(errs *[]ValidationError, path, column, sql string) {
	if column != "" && sql != "" {
		addErr(errs, path, "column and sql are mutually exclusive")
	}
}

func checkType(errs *[]ValidationError, path, t string) {
	if t == "" {
		addErr(errs, path, "type is required")
		return
	}
	if !aggregation.ValueType(t).Valid() {
		addErr(errs, path, "unknown type %q", t)
	}
}

func addErr(errs *[]ValidationError, path, msg string, args ...any) {
	*errs = append(*errs, ValidationError{
		Path:    path,
		Message: fmt.Sprintf(msg, args...),
	})
}
