package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lexpilot/lexpilot/internal/admin"
	admindb "github.com/lexpilot/lexpilot/internal/admin/db"
	adminhttp "github.com/lexpilot/lexpilot/internal/admin/http"
	"github.com/lexpilot/lexpilot/internal/app"
	"github.com/lexpilot/lexpilot/internal/audit"
	auditdb "github.com/lexpilot/lexpilot/internal/audit/db"
	audithttp "github.com/lexpilot/lexpilot/internal/audit/http"
	"github.com/lexpilot/lexpilot/internal/auth"
	"github.com/lexpilot/lexpilot/internal/observability"
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
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		// The snapshot cache degrades to direct builds without Redis.
		logger.Warn("connect redis", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditService := audit.NewService(auditdb.New(pool), cfg.AuditRetention)
	recorder := audit.NewRecorder(auditService, logger)

	probes := []admin.Probe{
		admin.NewPingProbe("database", true, pool.Ping),
		admin.NewPingProbe("redis", false, func(ctx context.Context) error {
			if redisClient == nil {
				return errors.New("not connected")
			}
			return redisClient.Ping(ctx).Err()
		}),
		admin.NewQueueProbe(inspector),
		admin.NewRuntimeProbe(),
	}
	adminService := admin.NewService(admin.ServiceDeps{
		Repo:   admindb.New(pool),
		Audits: auditService,
		Health: admin.NewHealthChecker(cfg.Version, probes...),
		Perf:   metrics,
		Cache:  admin.NewCache(redisClient, cfg.SnapshotTTL, metrics),
		Logger: logger,
	})

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, cfg.JWTTTL, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		TokenParser:  authService,
		AuthHandler:  auth.NewHandler(logger, authService, recorder),
		AdminHandler: adminhttp.NewHandler(logger, adminService, recorder),
		AuditHandler: audithttp.NewHandler(logger, auditService, recorder),
		Metrics:      metrics,
	})

	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	if _, err := jobClient.EnqueueSnapshotWarmup(ctx, "startup"); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Warn("enqueue snapshot warmup", slog.Any("error", err))
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
