package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heron-analytics/heron/internal/domain"
	"github.com/heron-analytics/heron/internal/insights"
	"github.com/heron-analytics/heron/internal/model"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *insights.Engine, predictor *model.Predictor, incidents []*domain.Incident, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, predictor, incidents, version)
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
	router.Get("/stats", handler.Stats)

	// Churn prediction dashboard
	router.Route("/churn", func(r chi.Router) {
		r.Post("/predict", handler.Predict)
		r.Get("/predictions/{id}", handler.GetPrediction)
		r.Get("/model", handler.ModelInfo)
	})

	// Incident analytics dashboard
	router.Route("/incidents", func(r chi.Router) {
		r.Post("/query", handler.QueryIncidents)
		r.Get("/filters", handler.IncidentFilters)
	})

	// Insight rule management
	router.Route("/insights/rules", func(r chi.Router) {
		r.Get("/", handler.ListInsightRules)
		r.Post("/", handler.CreateInsightRule)
		r.Delete("/{id}", handler.DeleteInsightRule)
		r.Post("/reload", handler.ReloadInsightRules)
	})

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
