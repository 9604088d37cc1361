// Package cli implements the aggq command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/app"
	"duck-analytics/internal/config"
	"duck-analytics/internal/db"
	"duck-analytics/internal/declarative"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == string(outputJSON) {
			_ = printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// session is the configuration resolved for one invocation.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	output outputFormat
}

// openStore opens the configured store.
func (s *session) openStore(ctx context.Context, mode db.Mode) (*sqlx.DB, aggregation.Dialect, error) {
	return app.OpenStore(ctx, s.cfg, mode)
}

// registry loads the configured schemas.
func (s *session) registry() (*declarative.Registry, error) {
	return declarative.Load(s.cfg.SchemaFiles, declarative.LoadOptions{})
}

func newRootCmd() *cobra.Command {
	var (
		driver   string
		dsn      string
		schemas  []string
		sources  []string
		output   string
		logLevel string
		envFile  string
	)
	s := &session{}

	rootCmd := &cobra.Command{
		Use:           "aggq",
		Short:         "Declarative aggregation queries",
		Long:          "Query declared dimensions, metrics and filters over SQLite, DuckDB or PostgreSQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > default
			flags := cmd.Flags()
			if flags.Changed("driver") {
				cfg.Driver = driver
				if !flags.Changed("dsn") && cfg.Driver == "duckdb" {
					cfg.DSN = ""
				}
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if flags.Changed("schema") {
				cfg.SchemaFiles = schemas
			}
			if flags.Changed("source") {
				cfg.Sources = sources
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			s.cfg = cfg
			s.output = format
			s.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			for _, w := range cfg.Warnings {
				s.logger.Debug(w)
			}
			return nil
		},
	}

	rootCmd.SetGlobalNormalizationFunc(underscoreToDash)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&driver, "driver", "sqlite3", "Store driver (sqlite3, duckdb, postgres)")
	pf.StringVar(&dsn, "dsn", "", "Data source name or database file (default aggq.sqlite for sqlite3)")
	pf.StringSliceVar(&schemas, "schema", nil, "Schema YAML file or directory (repeatable; default built-in schemas)")
	pf.StringSliceVar(&sources, "source", nil, "DuckDB file source as name=path (repeatable)")
	pf.StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml, csv)")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&envFile, "env-file", ".env", "Environment file to load")

	rootCmd.AddCommand(newVersionCmd(s))
	rootCmd.AddCommand(newDescribeCmd(s))
	rootCmd.AddCommand(newQueryCmd(s))
	rootCmd.AddCommand(newLoadCmd(s))
	rootCmd.AddCommand(newValidateCmd(s))
	rootCmd.AddCommand(newMigrateCmd(s))
	rootCmd.AddCommand(newServeCmd(s))

	return rootCmd
}

func newVersionCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "aggq version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// underscoreToDash lets --log_level and --log-level name the same flag.
func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// closeQuietly closes c, logging failures.
func closeQuietly(logger *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}
