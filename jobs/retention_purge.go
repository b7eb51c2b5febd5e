package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lexpilot/lexpilot/internal/jobs"
)

// Purger deletes audit entries whose retention date has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Invalidator drops cached views derived from audit data.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// RetentionPurgeJob enforces the audit retention window.
type RetentionPurgeJob struct {
	Purger      Purger
	Invalidator Invalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewRetentionPurgeJob wires dependencies for the purge handler. invalidator
// may be nil.
func NewRetentionPurgeJob(purger Purger, invalidator Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionPurgeJob {
	return &RetentionPurgeJob{Purger: purger, Invalidator: invalidator, Logger: logger, Metrics: metrics}
}

// Handle processes retention purge tasks.
func (j *RetentionPurgeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Purger == nil {
		return errors.New("retention purge: handler not configured")
	}
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskRetentionPurge)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOrDefault(j.Logger)
	purged, err := j.Purger.PurgeExpired(ctx)
	if err != nil {
		logger.Error("purge expired audit entries", slog.Any("error", err))
		return err
	}
	metrics.AddAffected(TaskRetentionPurge, purged)
	logger.Info("purged expired audit entries", slog.Int64("rows", purged))

	if purged > 0 && j.Invalidator != nil {
		if err := j.Invalidator.Invalidate(ctx); err != nil {
			// The purge already committed; a stale snapshot expires on its own.
			logger.Warn("invalidate dashboard snapshot", slog.Any("error", err))
		}
	}
	return nil
}
