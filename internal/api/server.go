package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/evaluator"
	"github.com/punto-financiamiento/informes/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, processor *evaluator.Processor, fetcher ReportFetcher, version string) *Server {
	reportTTL := time.Duration(cfg.Bureau.ReportTTL) * time.Second
	handler := NewHandler(repo, cache, bus, engine, processor, fetcher, version, reportTTL)
	router := chi.NewRouter()

	var verifier TokenVerifier
	if len(cfg.Auth.Tokens) > 0 {
		verifier = NewStaticVerifier(cfg.Auth.Tokens)
	}

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins)) // CORS for browser clients
	router.Use(RecoverMiddleware)                         // Recover from panics
	router.Use(TracingMiddleware)                         // OpenTelemetry tracing
	router.Use(LoggingMiddleware)                         // Request logging
	router.Use(middleware.RealIP)                         // Extract real IP
	router.Use(middleware.Compress(5))                    // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/api", func(r chi.Router) {
		r.Use(TenantMiddleware)
		r.Use(AuthMiddleware(verifier, cfg.Auth.AdminEmails))
		r.Use(RateLimitMiddleware(cache, cfg.RateLimit))

		// Document consultas
		r.Post("/informes", handler.Consulta)
		r.Post("/informes/lote", handler.ConsultaLote)

		// Evaluation retrieval
		r.Get("/evaluaciones/{id}", handler.GetEvaluation)

		// Consulta audit retrieval
		r.Get("/consultas/{id}", handler.GetConsulta)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
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
