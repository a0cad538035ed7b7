package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/db"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize   = 100
	concurrency = 4
)

type backfillStats struct {
	processed atomic.Int64
	created   atomic.Int64
	reused    atomic.Int64
	failed    atomic.Int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	dryRun := strings.EqualFold(os.Getenv("BACKFILL_DRY_RUN"), "true")
	log.Info("starting client backfill", "dryRun", dryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	store, leads := clients.NewStores(cfg, pool)
	svc := clients.NewResolutionService(cfg, nil, nil, nil, log)

	orgs, err := leads.ListOrganizationsWithUnlinkedLeads(ctx)
	if err != nil {
		log.DatabaseError("list organizations with unlinked leads", err)
		return
	}

	var stats backfillStats
	for _, org := range orgs {
		if ctx.Err() != nil {
			break
		}
		if err := backfillOrganization(ctx, svc, store.ForOrganization(org), leads, org, dryRun, &stats, log); err != nil {
			log.Error("organization backfill stopped", "organizationId", org, "error", err)
		}
	}

	log.Info("client backfill completed",
		"organizations", len(orgs),
		"processed", stats.processed.Load(),
		"created", stats.created.Load(),
		"reused", stats.reused.Load(),
		"failed", stats.failed.Load(),
	)
}

// backfillOrganization pages through the organization's unlinked leads and
// resolves each page with bounded concurrency. Leads sharing an identity
// inside one page are serialized by the storage conflict path.
func backfillOrganization(ctx context.Context, svc *resolution.Service, repo repository.Repository, leads repository.LeadStore, org uuid.UUID, dryRun bool, stats *backfillStats, log *logger.Logger) error {
	cursor := uuid.Nil
	for {
		page, err := leads.ListUnlinkedLeads(ctx, org, cursor, batchSize)
		if err != nil {
			log.DatabaseError("list unlinked leads", err)
			return err
		}
		if len(page) == 0 {
			return nil
		}
		cursor = page[len(page)-1].ID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, lead := range page {
			lead := lead // per-iteration copy (go 1.21 loop semantics)
			g.Go(func() error {
				stats.processed.Add(1)
				if dryRun {
					m, err := svc.MatchInRepository(gctx, lead, repo)
					if err != nil {
						return err
					}
					log.Info("dry run", "leadId", lead.ID, "matched", m.Found(), "matchedBy", string(m.By))
					return nil
				}

				res, err := svc.ConvertLead(gctx, leads, repo, org, lead.ID)
				if err != nil {
					stats.failed.Add(1)
					log.Error("failed to convert lead", "leadId", lead.ID, "organizationId", org, "error", err)
					return nil
				}
				if res.Created() {
					stats.created.Add(1)
				} else {
					stats.reused.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}
