package scheduler

import (
	"context"
	"fmt"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// LeadConverter is the part of the resolution service the worker drives.
type LeadConverter interface {
	ConvertLead(ctx context.Context, leads repository.LeadStore, repo repository.Repository, organizationID, leadID uuid.UUID, opts ...resolution.EnsureOption) (resolution.Resolution, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	converter LeadConverter
	store     repository.Store
	leads     repository.LeadStore
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, converter LeadConverter, store repository.Store, leads repository.LeadStore, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger: newAsynqLogger(log),
	})

	w := newWorker(converter, store, leads, log)
	w.server = server
	return w, nil
}

func newWorker(converter LeadConverter, store repository.Store, leads repository.LeadStore, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{
		mux:       asynq.NewServeMux(),
		converter: converter,
		store:     store,
		leads:     leads,
		log:       log,
	}
	w.mux.HandleFunc(TaskEnsureClientFromLead, w.handleEnsureClientFromLead)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEnsureClientFromLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEnsureClientFromLeadPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if payload.TraceParent != "" {
		ctx = propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier{"traceparent": payload.TraceParent})
	}
	ctx, span := tracing.StartSpan(ctx, "scheduler.EnsureClientFromLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead_id", payload.LeadID))

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id %q: %w", payload.LeadID, asynq.SkipRetry)
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil || orgID == uuid.Nil {
		return fmt.Errorf("invalid organization id %q: %w", payload.OrganizationID, asynq.SkipRetry)
	}

	res, err := w.converter.ConvertLead(ctx, w.leads, w.store.ForOrganization(orgID), orgID, leadID,
		resolution.WithSiretOverride(payload.SiretOverride))
	if err != nil {
		tracing.Fail(span, err)
		if !apperr.Retryable(err) {
			w.log.WithContext(ctx).Warn("lead conversion dropped", "lead_id", leadID.String(), "error", err)
			return fmt.Errorf("convert lead %s: %w: %w", leadID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("convert lead %s: %w", leadID, err)
	}

	w.log.WithContext(ctx).Info("lead converted",
		"lead_id", leadID.String(),
		"client_id", res.Client.ID.String(),
		"outcome", string(res.Outcome),
	)
	return nil
}
