package clients

import (
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

const storeMemory = "memory"

// NewStores returns the client and lead stores selected by CLIENT_STORE.
// pool is ignored for the memory store.
func NewStores(cfg config.ResolutionConfig, pool *pgxpool.Pool) (repository.Store, repository.LeadStore) {
	if cfg.GetClientStore() == storeMemory || pool == nil {
		return repository.NewMemory(), repository.NewMemoryLeads()
	}
	return repository.NewPostgres(pool), repository.NewPostgresLeads(pool)
}

// NewResolutionService builds the resolution service from configuration.
// locker, bus and m are optional.
func NewResolutionService(cfg config.ResolutionConfig, locker resolution.Locker, bus events.Bus, m *metrics.Resolution, log *logger.Logger) *resolution.Service {
	opts := []resolution.Option{
		resolution.WithBrandName(cfg.GetBrandName()),
		resolution.WithPhoneRegion(cfg.GetPhoneRegion()),
		resolution.WithMetrics(m),
		resolution.WithLogger(log),
	}
	if locker != nil {
		opts = append(opts, resolution.WithLocker(locker, cfg.GetIdentityLockTTL()))
	}
	if bus != nil {
		opts = append(opts, resolution.WithEventBus(bus))
	}
	return resolution.New(opts...)
}
