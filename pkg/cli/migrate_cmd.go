package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"duck-analytics/internal/db"
)

func newMigrateCmd(s *session) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the demo merge request tables",
		Long:  "Applies the embedded migrations to a SQLite or PostgreSQL store. DuckDB stores read files registered with --source instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := s.openStore(cmd.Context(), db.ModeWrite)
			if err != nil {
				return err
			}
			defer closeQuietly(s.logger, store)

			if err := db.RunMigrations(store.DB, s.cfg.Driver); err != nil {
				return err
			}
			version, err := db.MigrationVersion(store.DB, s.cfg.Driver)
			if err != nil {
				return err
			}
			s.logger.Info("migrations applied", "version", version)

			if seed {
				if err := db.SeedDemo(cmd.Context(), store); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}

			if s.output == outputJSON || s.output == outputYAML {
				return printTabular(cmd.OutOrStdout(), s.output, map[string]any{"version": version, "seeded": seed}, nil, nil)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d.\n", version)
			if seed {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Demo data loaded.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Load the demo data set after migrating")
	return cmd
}
