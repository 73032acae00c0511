package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/meshsight/meshsight/internal/adapters/http"
	natsadapter "github.com/meshsight/meshsight/internal/adapters/nats"
	"github.com/meshsight/meshsight/internal/adapters/objectstore"
	"github.com/meshsight/meshsight/internal/adapters/postgres"
	"github.com/meshsight/meshsight/internal/adapters/valkey"
	"github.com/meshsight/meshsight/internal/core/ports"
	"github.com/meshsight/meshsight/internal/core/usecases"
	"github.com/meshsight/meshsight/internal/pkg/config"
	"github.com/meshsight/meshsight/internal/pkg/logging"
	"github.com/meshsight/meshsight/internal/pkg/metrics"
	"github.com/meshsight/meshsight/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("meshsight-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging, level/format from LOG_LEVEL / LOG_FORMAT.
	logging.Setup("", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.PoolSize))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Periodic pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Raster object store (optional)
	var rasters ports.RasterStore
	if cfg.ObjectStore.Endpoint != "" {
		store, err := objectstore.New(ctx, cfg.ObjectStore.Endpoint,
			cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey,
			cfg.ObjectStore.Bucket, cfg.ObjectStore.UseSSL)
		if err != nil {
			slog.Warn("object store unavailable, raster exports disabled", "error", err)
		} else {
			rasters = store
		}
	}

	// Repos
	projectRepo := postgres.NewProjectRepo(db)
	nodeRepo := postgres.NewNodeRepo(db)
	hardwareRepo := postgres.NewHardwareRepo(db)
	gridRepo := postgres.NewGridRepo(db)
	viewshedRepo := postgres.NewViewshedRepo(db)
	coverageRepo := postgres.NewCoverageRepo(db)

	// Use cases. A failed NATS connection leaves events nil; the
	// pipeline runs without publishing.
	var events ports.EventPublisher
	if nc != nil {
		events = nc
	}
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	projectSvc := usecases.NewProjectService(projectRepo, cacheSvc)
	nodeSvc := usecases.NewNodeService(nodeRepo, projectRepo, hardwareRepo)
	coverageSvc := usecases.NewCoverageService(
		projectRepo, nodeRepo, gridRepo, viewshedRepo, coverageRepo,
		cacheSvc, events, rasters, cfg.Terrain.TileSource)

	deps := &http.Dependencies{
		Projects: projectSvc,
		Nodes:    nodeSvc,
		Coverage: coverageSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "MeshSight API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
