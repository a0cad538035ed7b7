package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/lock"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/scheduler"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/db"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.GetClientStore() == "memory" {
		panic("the scheduler needs CLIENT_STORE=postgres: the memory store is not shared with the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	var pool *pgxpool.Pool
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

	eventBus := events.NewInMemoryBus(log)
	if relay := events.NewKafkaRelay(cfg, log); relay != nil {
		relay.Forward(eventBus, events.Published()...)
		defer func() { _ = relay.Close() }()
	}

	rdb, err := lock.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize identity lock", "error", err)
		panic("failed to initialize identity lock: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	store, leads := clients.NewStores(cfg, pool)
	svc := clients.NewResolutionService(cfg, lock.NewRedisLocker(rdb, identityLockWait), eventBus, nil, log)

	worker, err := scheduler.NewWorker(cfg, svc, store, leads, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
	log.Info("scheduler stopped")
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
