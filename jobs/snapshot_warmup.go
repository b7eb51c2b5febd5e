package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lexpilot/lexpilot/internal/admin"
	jobmetrics "github.com/lexpilot/lexpilot/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotRefresher rebuilds and stores the dashboard snapshot.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (admin.Snapshot, error)
}

// SnapshotWarmupJob keeps the cached dashboard snapshot fresh so the first
// dashboard request after expiry does not pay for the full build.
type SnapshotWarmupJob struct {
	Refresher SnapshotRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewSnapshotWarmupJob wires dependencies for the warmup handler.
func NewSnapshotWarmupJob(refresher SnapshotRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotWarmupJob {
	return &SnapshotWarmupJob{Refresher: refresher, Logger: logger, Metrics: metrics}
}

// Handle processes snapshot warmup tasks.
func (j *SnapshotWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Refresher == nil {
		return errors.New("snapshot warmup: handler not configured")
	}
	var payload SnapshotWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Reason == "" {
		payload.Reason = "schedule"
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskSnapshotWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOrDefault(j.Logger).With(slog.String("reason", payload.Reason))
	start := time.Now()
	snap, err := j.Refresher.Refresh(ctx)
	if err != nil {
		logger.Error("refresh dashboard snapshot", slog.Any("error", err))
		return err
	}
	logger.Info("refreshed dashboard snapshot",
		slog.String("health", string(snap.SystemHealth.Status)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
