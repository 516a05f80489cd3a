// Package core provides the HTTP chassis for the city weather service.
// It creates a chi router and enforces cross-cutting concerns -- request
// correlation, logging, timeouts, and error handling -- before requests
// reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cityweather/internal/config"
	"cityweather/internal/types"
)

// VisitorResolver resolves the visitor identity for an incoming request.
// Implementations inspect authentication headers and preference cookies;
// resolution never fails, an unrecognized request is simply anonymous
// without a token.
type VisitorResolver interface {
	ResolveVisitor(r *http.Request) types.Visitor
}

// RouteRegistrar mounts a group of domain handler routes onto the router.
// Registrars are populated by the application entry point; the indirection
// avoids import cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the weather API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Visitors resolves request identity; nil disables visitor resolution
	// (requests proceed as anonymous without a token).
	Visitors VisitorResolver

	// V1RouteRegistrars are mounted under /v1 by MountRoutes.
	V1RouteRegistrars []RouteRegistrar

	// HealthProbes are executed by the /health endpoint.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. The caller is responsible for mounting routes
// (via MountRoutes) after construction; this separation allows tests to
// customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources. Database
// pools are owned and closed by the entry point; this hook exists so tests
// and main can share one teardown path.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
