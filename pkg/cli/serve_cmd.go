package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"duck-analytics/internal/app"
	"duck-analytics/internal/db"
)

func newServeCmd(s *session) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schemas over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				s.cfg.ListenAddr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, dialect, err := s.openStore(ctx, db.ModeRead)
			if err != nil {
				return err
			}
			defer closeQuietly(s.logger, store)

			a, err := app.New(app.Deps{Cfg: s.cfg, DB: store, Dialect: dialect, Logger: s.logger})
			if err != nil {
				return err
			}
			return a.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address")
	return cmd
}
