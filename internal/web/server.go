// Package web provides the HTTP server and handlers for purchase-order
// ingestion and the reports over stored data.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/core"
	"github.com/JonMunkholm/procure/internal/web/middleware"
)

// Server is the HTTP server for the ingestion application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limits  []*middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst))
	}
}

// rateLimit builds a per-IP limiter allowing perMinute requests with burst.
func (s *Server) rateLimit(perMinute, burst int) func(http.Handler) http.Handler {
	rl := middleware.NewRateLimiter(float64(perMinute)/60, burst)
	s.limits = append(s.limits, rl)
	return rl.Middleware
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleDashboardPage)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Ingestion
		r.Get("/ingest/template.xlsx", s.handleDownloadTemplate)
		r.Get("/ingest/status", s.handleWriteQueueStatus)
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.rateLimit(s.cfg.Rate.UploadLimit, 1))
			}
			r.Post("/ingest", s.handleStartIngest)
		})
		r.Get("/ingest/{id}", s.handleGetSession)
		r.Delete("/ingest/{id}", s.handleDiscardSession)
		r.Post("/ingest/{id}/{command}", s.handleCommand)

		// Reports
		r.Get("/quality", s.handleQuality)
		r.Get("/quality.xlsx", s.handleQualityExport)
		r.Get("/stats", s.handleStats)
		r.Get("/dashboard", s.handleCategoryDashboard)
		r.Get("/analysis", s.handleAnalysis)

		// Reference maintenance
		r.Get("/reference", s.handleListReferenceTables)
		r.Get("/reference/{kind}", s.handleListReference)
		r.Post("/reference/{kind}", s.handleUpsertReference)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limits {
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
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
