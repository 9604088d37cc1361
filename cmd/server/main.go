// Package main is the entry point for the duck-analytics HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"duck-analytics/internal/app"
	"duck-analytics/internal/config"
	"duck-analytics/internal/db"
)

// curlHostForListenAddr turns a listen address into a host:port usable in a
// curl example; wildcard hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// exampleQuery is a curl command posting a small request to the first schema.
func exampleQuery(listenAddr, schema string) string {
	return fmt.Sprintf(`curl -s -X POST http://%s/schemas/%s/query -d '{"metrics":[{"identifier":"count"}]}'`,
		curlHostForListenAddr(listenAddr), schema)
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, dialect, err := app.OpenStore(ctx, cfg, db.ModeRead)
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer store.Close() //nolint:errcheck

	application, err := app.New(app.Deps{Cfg: cfg, DB: store, Dialect: dialect, Logger: logger})
	if err != nil {
		logger.Error("initialize", "error", err)
		return 1
	}

	logger.Info("try: curl http://" + curlHostForListenAddr(cfg.ListenAddr) + "/schemas")
	if names := application.Registry.Names(); len(names) > 0 {
		logger.Info("query: " + exampleQuery(cfg.ListenAddr, names[0]))
	}
	if err := application.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}
	return 0
}
