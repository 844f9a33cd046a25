// Package httpapi exposes the read-only control surface over HTTP. Mutations
// go through the CLI; the router only reads workflow, progress, and cache
// state.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/primary"
)

// Router serves the read-only API.
type Router struct {
	workflows primary.WorkflowService
	progress  primary.ProgressService
	cache     primary.CacheService
	logger    *slog.Logger
}

// NewRouter builds the HTTP handler for the read-only API.
func NewRouter(workflows primary.WorkflowService, progress primary.ProgressService, cache primary.CacheService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{workflows: workflows, progress: progress, cache: cache, logger: logger}

	mux := chi.NewRouter()
	mux.Use(requestLog(logger))

	mux.Get("/healthz", rt.wrap(rt.handleHealthz))
	mux.Route("/api", func(r chi.Router) {
		r.Get("/workflows", rt.wrap(rt.handleListWorkflows))
		r.Get("/workflows/{ticketID}", rt.wrap(rt.handleGetWorkflow))
		r.Get("/workflows/{ticketID}/progress", rt.wrap(rt.handleProgress))
		r.Get("/cache/stats", rt.wrap(rt.handleCacheStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap converts handler errors to HTTP statuses. Not-found sentinels map to
// 404 with the wrapped message; everything else is logged and hidden behind
// a generic 500.
func (rt *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, workflow.ErrWorkflowNotFound), errors.Is(err, workflow.ErrTicketNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			rt.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleListWorkflows(w http.ResponseWriter, r *http.Request) error {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	workflows, err := rt.workflows.GetWorkflowHistory(r.Context(), limit)
	if err != nil {
		return err
	}

	out := make([]*workflowJSON, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, workflowToJSON(wf))
	}
	return writeJSON(w, http.StatusOK, out)
}

func (rt *Router) handleGetWorkflow(w http.ResponseWriter, r *http.Request) error {
	ticketID := chi.URLParam(r, "ticketID")

	status, err := rt.workflows.GetWorkflowStatus(r.Context(), ticketID)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, &statusJSON{
		TicketID: status.TicketID,
		Workflow: workflowToJSON(status.Workflow),
		Progress: progressToJSON(status.Progress),
	})
}

func (rt *Router) handleProgress(w http.ResponseWriter, r *http.Request) error {
	ticketID := chi.URLParam(r, "ticketID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := rt.progress.History(r.Context(), ticketID, limit)
	if err != nil {
		return err
	}

	out := make([]*progressJSON, 0, len(entries))
	for _, entry := range entries {
		out = append(out, progressToJSON(entry))
	}
	return writeJSON(w, http.StatusOK, out)
}

func (rt *Router) handleCacheStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := rt.cache.Stats(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, &cacheStatsJSON{
		Entries:      stats.Entries,
		Expired:      stats.Expired,
		OldestCached: stats.OldestCached,
		NewestCached: stats.NewestCached,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}

// requestLog logs one line per request with the final status and duration.
func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
