package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-access/internal/app"
	"github.com/lumina-lms/lumina-access/internal/audit"
	"github.com/lumina-lms/lumina-access/internal/platform/cache"
	"github.com/lumina-lms/lumina-access/internal/platform/db"
	"github.com/lumina-lms/lumina-access/internal/resources"
	"github.com/lumina-lms/lumina-access/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger)
	exporter := jobs.NewExporter(auditService, cfg.AuditExportDir, logger)

	catalogCache := resources.NewCache(redisClient, cfg.CatalogCacheTTL)
	resourcesRepo := resources.NewRepository(pool)
	resourcesService := resources.NewService(resourcesRepo, catalogCache)
	warmer := jobs.NewWarmer(resourcesService, logger)

	exportTask, err := jobs.NewAuditExportTask(jobs.AuditExportPayload{})
	if err != nil {
		logger.Error("build export task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditExport, Handler: exporter.HandleAuditExportTask},
			{Type: jobs.TaskCatalogWarmup, Handler: warmer.HandleCatalogWarmupTask},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: exportTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: jobs.NewCatalogWarmupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
