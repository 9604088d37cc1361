package cli

import (
	"fmt"
	"strings"

	"duck-analytics/internal/aggregation"
)

// parseDimension parses "identifier[:granularity]".
func parseDimension(s string) aggregation.DimensionSelection {
	id, gran, _ := strings.Cut(s, ":")
	return aggregation.DimensionSelection{Identifier: id, Granularity: aggregation.Granularity(gran)}
}

// parseDirection parses "identifier[:asc|desc]".
func parseDirection(s string) (string, aggregation.Direction) {
	id, dir, _ := strings.Cut(s, ":")
	return id, aggregation.Direction(strings.ToLower(dir))
}

// parseFilter parses "identifier=v1,v2" using the filter's declared type.
// Range filters take "from,to" where an empty side is open. Values of
// unknown filters are passed through so the planner reports them.
func parseFilter(schema *aggregation.Schema, s string) (aggregation.FilterApplication, error) {
	id, raw, ok := strings.Cut(s, "=")
	if !ok || id == "" {
		return aggregation.FilterApplication{}, fmt.Errorf("invalid filter %q: expected identifier=value[,value...]", s)
	}
	parts := strings.Split(raw, ",")
	app := aggregation.FilterApplication{Identifier: id, Values: make([]any, len(parts))}

	f, known := schema.Filter(id)
	_, isRange := f.(*aggregation.RangeFilter)
	for i, p := range parts {
		switch {
		case !known:
			app.Values[i] = p
		case isRange && strings.TrimSpace(p) == "":
			app.Values[i] = nil
		default:
			v, err := aggregation.ParseValue(f.Type(), p)
			if err != nil {
				return aggregation.FilterApplication{}, fmt.Errorf("filter %s: value %q is not a valid %s", id, p, f.Type())
			}
			app.Values[i] = v
		}
	}
	return app, nil
}
