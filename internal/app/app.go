// Package app provides application-level wiring for duck-analytics: the
// store, the schema registry and the HTTP API built from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/api"
	"duck-analytics/internal/config"
	"duck-analytics/internal/db"
	"duck-analytics/internal/declarative"
	"duck-analytics/internal/engine"
	"duck-analytics/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg     *config.Config
	DB      *sqlx.DB
	Dialect aggregation.Dialect
	Logger  *slog.Logger
}

// App is the fully-wired application.
type App struct {
	Registry *declarative.Registry
	Handler  *api.Handler

	cfg    *config.Config
	logger *slog.Logger
}

// OpenStore opens the configured store and, for DuckDB, registers the
// configured file sources as views.
func OpenStore(ctx context.Context, cfg *config.Config, mode db.Mode) (*sqlx.DB, aggregation.Dialect, error) {
	store, dialect, err := db.Open(ctx, cfg.Driver, cfg.DSN, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if _, ok := dialect.(aggregation.DuckDB); ok {
		for _, src := range cfg.Sources {
			name, path, err := engine.ParseSource(src)
			if err == nil {
				err = engine.RegisterSource(ctx, store.DB, name, path)
			}
			if err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		}
	}
	return store, dialect, nil
}

// New loads the configured schemas and builds the API handler over deps.DB.
func New(deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := declarative.Load(deps.Cfg.SchemaFiles, declarative.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	logger.Info("schemas loaded", "count", registry.Len(), "names", registry.Names())

	return &App{
		Registry: registry,
		Handler:  api.NewHandler(registry, deps.DB, deps.Dialect, logger.With("component", "api"), deps.Cfg.QueryTimeout),
		cfg:      deps.Cfg,
		logger:   logger,
	}, nil
}

// Router returns the HTTP handler with the configured middleware.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, a.Handler, api.RouterOptions{
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
	})
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
