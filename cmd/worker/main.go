package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexpilot/lexpilot/internal/admin"
	admindb "github.com/lexpilot/lexpilot/internal/admin/db"
	"github.com/lexpilot/lexpilot/internal/app"
	"github.com/lexpilot/lexpilot/internal/audit"
	auditdb "github.com/lexpilot/lexpilot/internal/audit/db"
	jobmetrics "github.com/lexpilot/lexpilot/internal/jobs"
	"github.com/lexpilot/lexpilot/internal/platform/cache"
	"github.com/lexpilot/lexpilot/internal/platform/db"
	"github.com/lexpilot/lexpilot/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	auditService := audit.NewService(auditdb.New(pool), cfg.AuditRetention)
	adminService := admin.NewService(admin.ServiceDeps{
		Repo:   admindb.New(pool),
		Audits: auditService,
		Health: admin.NewHealthChecker(cfg.Version,
			admin.NewPingProbe("database", true, pool.Ping),
			admin.NewPingProbe("redis", false, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
			admin.NewQueueProbe(inspector),
			admin.NewRuntimeProbe(),
		),
		Cache:  admin.NewCache(redisClient, cfg.SnapshotTTL, nil),
		Logger: logger,
	})

	metrics := jobmetrics.NewMetrics(nil)
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()
	warmupJob := jobs.NewSnapshotWarmupJob(adminService, logger, metrics)
	purgeJob := jobs.NewRetentionPurgeJob(auditService, adminService, logger, metrics)

	warmupTask, err := jobs.NewSnapshotWarmupTask("schedule")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	purgeTask, err := jobs.NewRetentionPurgeTask()
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSnapshotWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskRetentionPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.SnapshotWarmupSpec, Task: warmupTask},
			{Spec: jobs.RetentionPurgeSpec, Task: purgeTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
