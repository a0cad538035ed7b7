// Package clients provides the client identity bounded context module: it
// turns leads into canonical clients and exposes the resolution endpoints.
package clients

import (
	"context"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/handler"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	apphttp "github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/http"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/validator"
)

// Module is the clients bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *resolution.Service
	log     *logger.Logger
}

// NewModule wires the clients handler. queue may be nil when no Redis is configured.
func NewModule(svc *resolution.Service, store repository.Store, leads repository.LeadStore, queue handler.ConvertEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Nop()
	}
	return &Module{
		handler: handler.New(svc, store, leads, queue, val),
		service: svc,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "clients"
}

// Service returns the resolution service for other composition roots.
func (m *Module) Service() *resolution.Service {
	return m.service
}

// RegisterHandlers subscribes the module to the domain events it follows.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Clients created without a SIRET need a manual completion.
	bus.Subscribe(events.ClientCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ClientCreated)
		if !ok || !e.TemporarySiret {
			return nil
		}
		m.log.WithContext(ctx).Warn("client created with a temporary siret",
			"client_id", e.ClientID.String(),
			"organization_id", e.OrganizationID.String(),
			"lead_id", e.LeadID.String(),
		)
		return nil
	}))
}

// RegisterRoutes mounts clients and lead conversion routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"), ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
