// Package server exposes the enrichment pipeline, discovery, the daily
// workflow and lead CRUD over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
	"github.com/aiprodig/leadgen-cli/internal/enrich"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

// Discoverer runs one discovery pass.
type Discoverer interface {
	Discover(ctx context.Context, query string) (*discovery.Report, error)
}

// Deps are the services the handlers call. Discoverer and Workflow may be
// nil, in which case their endpoints answer 503.
type Deps struct {
	Store      store.Store
	Enricher   enrich.Runner
	Discoverer Discoverer
	Workflow   discovery.WorkflowRunner

	// CronSecret, when set, must be presented as a bearer token on the
	// daily-workflow trigger.
	CronSecret     string
	AllowedOrigins []string
}

// Server is the HTTP trigger surface.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router and registers every route.
func New(deps Deps) *Server {
	s := &Server{deps: deps}
	if deps.CronSecret == "" {
		zap.L().Warn("server: cron secret not set, daily-workflow trigger is open")
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/discover", s.handleDiscover)
		r.Get("/cron/daily-workflow", s.handleDailyWorkflow)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.handleListLeads)
			r.Post("/", s.handleCreateLead)
			r.Get("/{id}", s.handleGetLead)
			r.Patch("/{id}/draft", s.handleUpdateDraft)
			r.Patch("/{id}/status", s.handleUpdateStatus)
			r.Delete("/{id}", s.handleDeleteLead)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
