// Package api exposes the HTTP interface for the crawl and search service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/webgraph-io/webgraph/internal/crawl"
	"github.com/webgraph-io/webgraph/internal/id"
	"github.com/webgraph-io/webgraph/internal/search"
	"github.com/webgraph-io/webgraph/internal/taskstore"
)

// TaskGetter loads persisted task status. It is optional; a nil getter
// disables the task endpoint.
type TaskGetter interface {
	GetTask(ctx context.Context, taskID string) (taskstore.Task, error)
}

// Server wires HTTP handlers to the message bus and search engine.
type Server struct {
	router chi.Router
	bus    crawl.Bus
	engine *search.Engine
	tasks  TaskGetter
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. tasks may be nil.
func NewServer(bus crawl.Bus, engine *search.Engine, tasks TaskGetter, logger *zap.Logger) *Server {
	s := &Server{
		bus:    bus,
		engine: engine,
		tasks:  tasks,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.submitCrawl)
		r.Get("/search", s.search)
		r.Get("/tasks/{task_id}", s.getTask)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	URL     string `json:"url"`
	Options struct {
		Sitemap  bool `json:"sitemap"`
		MaxPages int  `json:"max_pages"`
	} `json:"options"`
}

// submitCrawl validates the seed URL and publishes an init_crawl message. The
// crawl itself runs asynchronously in the pipeline workers.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seed, err := crawl.Normalize(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid url: "+err.Error())
		return
	}

	msg := crawl.InitCrawl{
		URL: seed,
		Options: crawl.CrawlOptions{
			Sitemap:  req.Options.Sitemap,
			MaxPages: req.Options.MaxPages,
		},
	}
	if err := s.bus.Publish(r.Context(), msg); err != nil {
		s.logger.Error("publish init_crawl failed", zap.String("url", seed), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to queue crawl")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "url": seed})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Search(r.Context(), query))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.writeError(w, http.StatusNotFound, "task tracking is not enabled")
		return
	}
	taskID := chi.URLParam(r, "task_id")
	task, err := s.tasks.GetTask(r.Context(), taskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("task lookup failed", zap.String("task_id", taskID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"task_id":       task.ID,
		"base_url":      task.BaseURL,
		"status":        task.Status,
		"pages_crawled": task.PagesCrawled,
		"updated_at":    task.UpdatedAt,
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := id.NewRequestID()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
