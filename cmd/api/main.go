package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/handler"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/lock"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	apphttp "github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/http"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/http/router"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/scheduler"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/migrations"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/db"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/metrics"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	identityLockWait = 2 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "clientStore", cfg.GetClientStore())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	var health apphttp.HealthChecker
	if cfg.GetClientStore() != "memory" {
		if cfg.MigrationsOnBoot {
			if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
				return db.RunMigrations(ctx, cfg, migrations.FS)
			}); err != nil {
				log.Error("failed to run database migrations", "error", err)
				panic("failed to run database migrations: " + err.Error())
			}
			log.Info("database migrations complete")
		}

		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
		health = db.NewPoolAdapter(pool)
		log.Info("database connection established")
	} else {
		log.Warn("CLIENT_STORE=memory; clients are lost on restart")
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	if relay := events.NewKafkaRelay(cfg, log); relay != nil {
		relay.Forward(eventBus, events.Published()...)
		defer func() { _ = relay.Close() }()
		log.Info("relaying domain events to kafka", "topic", cfg.GetKafkaEventsTopic())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	resolutionMetrics := metrics.NewResolution(registry)

	locker, closeLocker := initIdentityLocker(cfg, log)
	if closeLocker != nil {
		defer closeLocker()
	}

	queue, closeQueue := initConvertQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	store, leads := clients.NewStores(cfg, pool)
	svc := clients.NewResolutionService(cfg, locker, eventBus, resolutionMetrics, log)
	clientsModule := clients.NewModule(svc, store, leads, queue, val, log)
	clientsModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Metrics:  registry,
		Modules: []apphttp.Module{
			clientsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initIdentityLocker(cfg config.RedisConfig, log *logger.Logger) (resolution.Locker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; identity lock disabled, relying on storage uniqueness")
		return nil, nil
	}

	rdb, err := lock.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize identity lock", "error", err)
		return nil, nil
	}

	return lock.NewRedisLocker(rdb, identityLockWait), func() {
		_ = rdb.Close()
	}
}

func initConvertQueue(cfg config.SchedulerConfig, log *logger.Logger) (handler.ConvertEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; background lead conversion disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
