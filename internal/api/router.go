package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duck-analytics/internal/middleware"
)

// RouterOptions configures the HTTP middleware stack.
type RouterOptions struct {
	RateLimit          middleware.RateLimitConfig
	CORSAllowedOrigins []string
}

// NewRouter mounts h with request ids, access logs, panic recovery, CORS and
// rate limiting. The rate limiter's cleanup stops when ctx is done.
func NewRouter(ctx context.Context, h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/schemas", func(r chi.Router) {
		if opts.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(ctx, opts.RateLimit))
		}
		r.Get("/", h.ListSchemas)
		r.Get("/{name}", h.GetSchema)
		r.Post("/{name}/query", h.Query)
		r.Post("/{name}/explain", h.Explain)
		r.Post("/{name}/load", h.Load)
	})
	return r
}
