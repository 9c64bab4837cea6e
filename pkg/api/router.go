// Package api provides the HTTP query surface.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/api/handlers"
	"github.com/wolflogic/wolfmem/pkg/api/middleware"
	"github.com/wolflogic/wolfmem/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Query serves /query, /recent, and /namespaces
	Query *handlers.QueryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	if handlers.Query != nil {
		r.Post("/query", handlers.Query.Query)
		r.Post("/recent", handlers.Query.Recent)
		r.Get("/namespaces", handlers.Query.Namespaces)
	}

	// Health check routes
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
	}
}
