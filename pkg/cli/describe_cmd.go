package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"duck-analytics/internal/aggregation"
)

func newDescribeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [schema]",
		Short: "List schemas or describe one schema's dimensions, metrics and filters",
		Example: `  # All schemas
  aggq describe

  # Everything a merge_requests query can reference
  aggq describe merge_requests --output yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := s.registry()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				type summary struct {
					Name        string `json:"name" yaml:"name"`
					Description string `json:"description,omitempty" yaml:"description,omitempty"`
				}
				var list []summary
				var rows [][]string
				for _, name := range registry.Names() {
					def, _ := registry.Get(name)
					list = append(list, summary{Name: name, Description: def.Description})
					rows = append(rows, []string{name, def.Description})
				}
				return printTabular(w, s.output, list, []string{"name", "description"}, rows)
			}

			def, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			desc := def.Schema.Describe()
			return printTabular(w, s.output, desc,
				[]string{"section", "identifier", "name", "kind", "type", "details"}, describeRows(desc))
		},
	}
}

func describeRows(desc aggregation.SchemaDescription) [][]string {
	var rows [][]string
	add := func(section string, defs []aggregation.DefinitionDescription) {
		for _, d := range defs {
			var details []string
			if len(d.Granularities) > 0 {
				grans := make([]string, len(d.Granularities))
				for i, g := range d.Granularities {
					grans[i] = string(g)
				}
				details = append(details, "granularities="+strings.Join(grans, ","))
			}
			if d.MaxSize > 0 {
				details = append(details, fmt.Sprintf("max_size=%d", d.MaxSize))
			}
			rows = append(rows, []string{section, d.Identifier, d.Name, d.Kind, string(d.Type), strings.Join(details, " ")})
		}
	}
	add("dimension", desc.Dimensions)
	add("metric", desc.Metrics)
	add("filter", desc.Filters)
	return rows
}
