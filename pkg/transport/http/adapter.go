// Package http serves the query API over HTTP. It routes requests with
// chi, applies CORS and metrics middleware, and serializes responses as
// JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/observability"
	"github.com/datafrage-dev/datafrage/pkg/storage"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

// Adapter serves the query API over HTTP. It routes requests to the
// QueryHandler and, when a store is configured, to the persistence
// endpoints.
type Adapter struct {
	handler  transport.QueryHandler
	store    transport.ResultStore // nil if stateless-only
	inflight *transport.InFlightRegistry
	router   chi.Router
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr           string
	MaxBodySize    int64
	AllowedOrigins []string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		MaxBodySize:    1 << 20, // 1 MB
		AllowedOrigins: []string{"*"},
	}
}

// NewAdapter creates an HTTP adapter with the given QueryHandler and
// options. The ResultStore is optional; when nil, GET and DELETE
// endpoints return an error indicating the operation is not available.
// Middleware is applied to the QueryHandler in the given order.
func NewAdapter(handler transport.QueryHandler, store transport.ResultStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultConfig().AllowedOrigins
	}

	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		handler:  handler,
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		router:   chi.NewRouter(),
		config:   cfg,
	}

	a.router.Use(httpRequestIDMiddleware)
	a.router.Use(observability.MetricsMiddleware)
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	a.router.Post("/v1/queries", a.handleCreateQuery)
	a.router.Get("/v1/queries/{id}", a.handleGetQuery)
	a.router.Get("/v1/queries", a.handleListQueries)
	a.router.Delete("/v1/queries/{id}", a.handleDeleteQuery)
	a.router.Get("/healthz", a.handleHealth)
	a.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return a
}

// Handler returns the http.Handler for this adapter. Use this to
// integrate with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// httpRequestIDMiddleware propagates the X-Request-ID header. If present
// in the request it is carried into the context; either way the ID
// assigned during processing is echoed on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleCreateQuery handles POST /v1/queries. The query ID is allocated
// here, before processing starts, so the query can be cancelled by ID
// while it is still running.
func (a *Adapter) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := api.NewQueryID()
	a.inflight.Register(id, cancel)
	defer a.inflight.Remove(id)

	resp, err := a.handler.HandleQuery(ctx, id, &req)
	if err != nil {
		a.writeHandlerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleGetQuery handles GET /v1/queries/{id}.
func (a *Adapter) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("query retrieval is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := chi.URLParam(r, "id")
	if !api.ValidateQueryID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("malformed query ID"),
			http.StatusBadRequest,
		)
		return
	}

	resp, err := a.store.GetQuery(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleDeleteQuery handles DELETE /v1/queries/{id}. It first checks
// the in-flight registry (cancelling a query that is still processing),
// then falls through to the result store for standard deletion.
func (a *Adapter) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !api.ValidateQueryID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("malformed query ID"),
			http.StatusBadRequest,
		)
		return
	}

	if a.inflight.Cancel(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("query deletion is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	if err := a.store.DeleteQuery(r.Context(), id); err != nil {
		a.writeStoreError(w, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListQueries handles GET /v1/queries.
func (a *Adapter) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("query listing is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListQueries(r.Context(), opts)
	if err != nil {
		a.writeHandlerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleHealth handles GET /healthz. When a store is configured, its
// health check is included.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			status = "degraded: " + err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.Error) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Status: q.Get("status"),
		Order:  q.Get("order"),
	}

	if opts.Status != "" && opts.Status != string(api.QueryStatusSucceeded) && opts.Status != string(api.QueryStatusFailed) {
		return opts, api.NewInvalidRequestError("status must be 'succeeded' or 'failed'")
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

// writeStoreError maps store errors to HTTP responses.
func (a *Adapter) writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("query "+id+" not found"),
			http.StatusNotFound,
		)
		return
	}
	a.writeHandlerError(w, err)
}

// writeHandlerError writes an error response, deriving the HTTP status
// from the error kind when the error is an *api.Error.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}
	transport.WriteAPIError(w, apiErr)
}
