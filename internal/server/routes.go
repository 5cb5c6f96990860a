package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/appid"
	"github.com/tickerlens/tickerlens/internal/observability"
	"github.com/tickerlens/tickerlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints per Workhorse §9
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	s.registerAPIRoutes()

	// Admin signal endpoint (optional, requires TICKERLENS_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerAPIRoutes mounts the read-only v1 API for whatever dependencies
// were supplied to New.
func (s *Server) registerAPIRoutes() {
	if s.guards == nil && s.orchestrator == nil {
		return
	}

	s.router.Route("/v1", func(r chi.Router) {
		if s.guards != nil {
			guards := &handlers.GuardsHandler{Registry: s.guards}
			r.Get("/guards", guards.List)
			r.Get("/guards/{provider}", guards.Get)

			if hm := handlers.GetHealthManager(); hm != nil {
				hm.RegisterChecker("guards", handlers.GuardHealthChecker{Registry: s.guards})
			}
		}
		if s.orchestrator != nil {
			tickers := &handlers.TickersHandler{
				Orchestrator:   s.orchestrator,
				DefaultProfile: s.defaultProfile,
			}
			r.Get("/tickers/{symbol}", tickers.Get)
		}
	})
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	tokenEnv := appid.EnvName(context.Background(), "admin_token")
	adminToken := os.Getenv(tokenEnv)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + tokenEnv + " set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoint
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
