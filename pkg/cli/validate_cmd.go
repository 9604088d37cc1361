package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"duck-analytics/internal/declarative"
)

func newValidateCmd(s *session) *cobra.Command {
	var allowUnknownFields bool

	cmd := &cobra.Command{
		Use:   "validate [file-or-dir...]",
		Short: "Validate schema files offline",
		Long:  "Reads schema YAML files and checks them for errors without opening the store. Defaults to --schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = s.cfg.SchemaFiles
			}
			if len(paths) == 0 {
				return errors.New("no schema files given: pass paths or --schema")
			}

			docs, err := declarative.LoadPaths(paths, declarative.LoadOptions{AllowUnknownFields: allowUnknownFields})
			if err != nil {
				return fmt.Errorf("load schemas: %w", err)
			}

			var problems []string
			var defs []*declarative.Definition
			for _, doc := range docs {
				def, err := declarative.Compile(doc)
				if err != nil {
					problems = append(problems, err.Error())
					continue
				}
				defs = append(defs, def)
			}
			if len(problems) == 0 {
				if _, err := declarative.NewRegistry(defs...); err != nil {
					problems = append(problems, err.Error())
				}
			}

			w := cmd.OutOrStdout()
			if s.output == outputJSON || s.output == outputYAML {
				body := map[string]any{"valid": len(problems) == 0, "schemas": len(docs)}
				if len(problems) > 0 {
					body["errors"] = problems
				}
				if err := printTabular(w, s.output, body, nil, nil); err != nil {
					return err
				}
			} else {
				for _, p := range problems {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
				}
				if len(problems) == 0 {
					_, _ = fmt.Fprintf(w, "%d schema(s) valid.\n", len(docs))
				}
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d schema validation error(s)", len(problems))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in schema files")
	return cmd
}
