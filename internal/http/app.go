package http

import (
	"context"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/health/ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled in cmd/api and consumed by router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is optional; nil reports ready unconditionally.
	Health   HealthChecker
	EventBus events.Bus
	// Metrics is served on /metrics when set.
	Metrics *prometheus.Registry
	Modules []Module
}
