// Package core provides the HTTP chassis for the Skyline dashboard API.
// It creates a chi router that serves both standard HTTP (local and container
// deployments) and AWS Lambda via the API Gateway adapter. It enforces
// cross-cutting concerns such as panic recovery, request logging, rate
// limiting, compression and metrics before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skyline/internal/config"
)

// RouteRegistrar mounts a group of domain routes onto the v1 router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the dashboard API, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars are invoked by MountRoutes under /v1. Populated by the
	// application entry point to avoid an import cycle with handler packages.
	V1RouteRegistrars []RouteRegistrar

	limiter   *clientLimiter
	proxyHops int
	router    *chi.Mux
}

// NewServer initializes dependencies and prepares the router for route
// mounting. The caller mounts routes via MountRoutes after construction.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		proxyHops: cfg.Server.TrustedProxyHops,
		router:    chi.NewRouter(),
	}
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}
	return s, nil
}

// Handler returns the router as an http.Handler.
// Used by http.Server (local) and the Lambda adapter.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources. The service holds no pools or
// connections of its own, so this only records the shutdown.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
