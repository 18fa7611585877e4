// Package web provides the HTTP API for starting pipeline runs and following
// their progress.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/web/middleware"
)

// Options configures a Server. Zero rate limits disable limiting.
type Options struct {
	// DataDir is where relative paths of run requests resolve. Paths may
	// not leave it.
	DataDir string

	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	// WriteTimeout is usually 0 so progress streams stay open.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	RequestsPerMinute int
	// RunsPerMinute limits POST /api/runs per client on top of the general limit.
	RunsPerMinute int

	// Metrics, when set, is served at MetricsPath.
	Metrics     http.Handler
	MetricsPath string
}

// Server is the HTTP server of the follow-up service.
type Server struct {
	service *core.Service
	opts    Options
	router  *chi.Mux
	server  *http.Server

	limiters []*middleware.RateLimiter
}

// NewServer creates a Server around a run service.
func NewServer(service *core.Service, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	s := &Server{
		service: service,
		opts:    opts,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger(s.opts.MetricsPath))
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.opts.RequestsPerMinute > 0 {
		s.router.Use(s.rateLimit(s.opts.RequestsPerMinute))
	}
}

func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	rl := middleware.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.Handler
}

func (s *Server) setupRoutes() {
	// Progress streams outlive the request timeout.
	s.router.Get("/api/runs/{runID}/progress", s.handleRunProgress)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.opts.RequestTimeout))

		r.Get("/", s.handleIndex)
		r.Get("/healthz", s.handleHealth)
		if s.opts.Metrics != nil {
			r.Handle(s.opts.MetricsPath, s.opts.Metrics)
		}

		r.Get("/api/tables", s.handleListTables)
		r.Get("/api/steps", s.handleListSteps)

		r.Get("/api/runs", s.handleListRuns)
		r.With(s.runLimit()).Post("/api/runs", s.handleStartRun)
		r.Get("/api/runs/{runID}", s.handleGetRun)
		r.Get("/api/runs/{runID}/result", s.handleRunResult)

		r.Get("/api/reference/pending", s.handlePendingReference)
	})
}

func (s *Server) runLimit() func(http.Handler) http.Handler {
	if s.opts.RunsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit(s.opts.RunsPerMinute)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for open ones to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
