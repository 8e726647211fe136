// Package server assembles the HTTP API: document ingestion, hybrid
// search, answering, and the competency suite.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clausewise/clausewise/internal/answer"
	"github.com/clausewise/clausewise/internal/competency"
	"github.com/clausewise/clausewise/internal/ingest"
	"github.com/clausewise/clausewise/internal/registry"
	"github.com/clausewise/clausewise/internal/retriever"
)

// Config holds server configuration.
type Config struct {
	Port              int
	MaxUploadBytes    int64
	AllowedExtensions []string
	DefaultK          int
	AllowAll          bool // allow all CORS origins (dev mode)
}

// Deps are the wired feature components the server exposes over HTTP.
// Nil fields skip their routes, which keeps handler tests light.
type Deps struct {
	Registry         *registry.Registry
	Pipeline         *ingest.Pipeline
	Scheduler        *ingest.Scheduler
	Retriever        *retriever.Retriever
	Assembler        *answer.Assembler
	CompetencyStore  *competency.Store
	CompetencyRunner *competency.Runner
}

// Server is the clausewise HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and registers every feature's routes.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if s.deps.Registry != nil && s.deps.Pipeline != nil && s.deps.Scheduler != nil {
		ingest.RegisterRoutes(r, s.deps.Registry, s.deps.Pipeline, s.deps.Scheduler, ingest.RouteOptions{
			MaxUploadBytes:    s.cfg.MaxUploadBytes,
			AllowedExtensions: s.cfg.AllowedExtensions,
		})
	}
	if s.deps.Retriever != nil {
		retriever.RegisterRoutes(r, s.deps.Retriever, s.cfg.DefaultK)
	}
	if s.deps.Assembler != nil {
		answer.RegisterRoutes(r, s.deps.Assembler)
	}
	if s.deps.CompetencyStore != nil && s.deps.CompetencyRunner != nil {
		competency.RegisterRoutes(r, s.deps.CompetencyStore, s.deps.CompetencyRunner)
	}

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("clausewise server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
