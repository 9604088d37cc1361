// Package api exposes aggregation schemas over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"duck-analytics/internal/aggregation"
	"duck-analytics/internal/declarative"
	"duck-analytics/internal/domain"
	"duck-analytics/internal/middleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Store runs compiled queries. *sqlx.DB satisfies it.
type Store interface {
	aggregation.Querier
	sqlx.QueryerContext
}

// schemaService is the per-schema engine.
type schemaService struct {
	def      *declarative.Definition
	executor *aggregation.Executor
	loader   *aggregation.Loader
}

// Handler serves the schema endpoints.
type Handler struct {
	store   Store
	schemas map[string]*schemaService
	names   []string
	logger  *slog.Logger
	timeout time.Duration
}

// NewHandler builds an executor and a loader for every schema of registry.
// A zero timeout leaves query deadlines to the request context.
func NewHandler(registry *declarative.Registry, store Store, dialect aggregation.Dialect, logger *slog.Logger, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		store:   store,
		schemas: make(map[string]*schemaService, registry.Len()),
		names:   registry.Names(),
		logger:  logger,
		timeout: timeout,
	}
	for _, name := range h.names {
		def, _ := registry.Get(name)
		planner := aggregation.NewPlanner(def.Schema, dialect)
		h.schemas[name] = &schemaService{
			def:      def,
			executor: aggregation.NewExecutor(planner, logger),
			loader:   aggregation.NewLoader(planner, logger),
		}
	}
	return h
}

func (h *Handler) lookup(r *http.Request) (*schemaService, error) {
	name := chi.URLParam(r, "name")
	svc, ok := h.schemas[name]
	if !ok {
		return nil, domain.ErrNotFound("schema %q not found", name)
	}
	return svc, nil
}

func (h *Handler) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", middleware.RequestIDFromContext(r.Context()))
}

// decodeBody decodes a JSON body strictly; numbers stay json.Number so
// integer filter values are not widened to floats.
func decodeBody(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// SchemaSummary is an entry of the schema list.
type SchemaSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListSchemas handles GET /schemas.
func (h *Handler) ListSchemas(w http.ResponseWriter, _ *http.Request) {
	data := make([]SchemaSummary, 0, len(h.names))
	for _, n := range h.names {
		data = append(data, SchemaSummary{Name: n, Description: h.schemas[n].def.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// GetSchema handles GET /schemas/{name}.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	svc, err := h.lookup(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.def.Schema.Describe())
}

// Query handles POST /schemas/{name}/query. Invalid requests get 400 with
// the per-section errors.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	svc, err := h.lookup(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req aggregation.Request
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()
	res, err := svc.executor.Execute(ctx, h.store, svc.def.Scope, req)
	if err != nil {
		writeError(w, h.requestLogger(r), fmt.Errorf("schema %s: %w", svc.def.Name(), err))
		return
	}
	status := http.StatusOK
	if !res.Success() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res.Payload())
}

// PlanResponse is the body of an explain response.
type PlanResponse struct {
	PlanID        string                    `json:"plan_id"`
	SQL           string                    `json:"sql"`
	Args          []any                     `json:"args"`
	Granularities []aggregation.Granularity `json:"granularities"`
}

// Explain handles POST /schemas/{name}/explain: the SQL a query would run.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	svc, err := h.lookup(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req aggregation.Request
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, errs := svc.executor.Explain(svc.def.Scope, req)
	if errs != nil {
		writeJSON(w, http.StatusBadRequest, (&aggregation.Result{Errors: errs}).Payload())
		return
	}
	args := plan.Args
	if args == nil {
		args = []any{}
	}
	writeJSON(w, http.StatusOK, PlanResponse{PlanID: plan.ID, SQL: plan.SQL, Args: args, Granularities: plan.Granularities()})
}

// Load handles POST /schemas/{name}/load: filtered raw rows.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	svc, err := h.lookup(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req aggregation.RawRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()
	rows, err := svc.loader.Load(ctx, h.store, svc.def.Scope, req)
	if err != nil {
		writeError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}
