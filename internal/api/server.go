package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/pipeline"
	"github.com/opensource-retail/heron/internal/predict"
	"github.com/opensource-retail/heron/internal/segment"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, scorer *predict.Scorer, segments *segment.Engine, runner *pipeline.Runner, version string) *Server {
	handler := NewHandler(repo, cache, bus, scorer, segments, runner, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Scoring
	router.Post("/predict", handler.Predict)
	router.Post("/predict/proba", handler.PredictProba)

	// Customer scoring history
	router.Get("/customers/{id}/scores", handler.ListCustomerScores)

	// Pipeline runs
	router.Post("/runs", handler.StartRun)
	router.Get("/runs", handler.ListRuns)
	router.Get("/runs/{id}", handler.GetRun)

	// Segment rule management
	router.Get("/segments", handler.ListSegmentRules)
	router.Get("/segments/{id}", handler.GetSegmentRule)
	router.Post("/segments", handler.CreateSegmentRule)
	router.Delete("/segments/{id}", handler.DeleteSegmentRule)
	router.Post("/segments/reload", handler.ReloadSegmentRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
