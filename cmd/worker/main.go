package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/meshsight/meshsight/internal/adapters/nats"
	"github.com/meshsight/meshsight/internal/adapters/postgres"
	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/ports"
	"github.com/meshsight/meshsight/internal/core/terrain"
	"github.com/meshsight/meshsight/internal/core/viewshed"
	"github.com/meshsight/meshsight/internal/pkg/config"
	"github.com/meshsight/meshsight/internal/pkg/logging"
	"github.com/meshsight/meshsight/internal/workflows"
)

func main() {
	cfg, err := config.Load("meshsight-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup("", "")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.PoolSize))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, progress events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Log completions as they land, regardless of which worker ran them.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err == nil {
		defer sub.Close()
		_ = sub.SubscribeCompleted(ctx, func(ctx context.Context, s *domain.CoverageSummary) error {
			slog.Info("coverage completed",
				"project", s.ProjectID,
				"coverage_pct", s.CoveragePct,
				"nodes", s.NodeCount)
			return nil
		})
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.CoverageWorkflow)
	w.RegisterActivity(&workflows.CoverageActivities{
		Projects:   postgres.NewProjectRepo(db),
		Nodes:      postgres.NewNodeRepo(db),
		Grids:      postgres.NewGridRepo(db),
		Viewsheds:  postgres.NewViewshedRepo(db),
		Coverages:  postgres.NewCoverageRepo(db),
		Events:     events,
		Loader:     &terrain.Loader{},
		Engine:     &viewshed.Engine{},
		TileSource: cfg.Terrain.TileSource,
	})

	slog.Info("coverage worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
