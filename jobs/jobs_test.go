package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/admin"
	jobmetrics "github.com/lexpilot/lexpilot/internal/jobs"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context) (admin.Snapshot, error) {
	f.calls++
	return admin.Snapshot{SystemHealth: admin.SystemHealth{Status: admin.StatusHealthy}}, f.err
}

type fakePurger struct {
	purged      int64
	err         error
	invalidated int
}

func (f *fakePurger) PurgeExpired(ctx context.Context) (int64, error) { return f.purged, f.err }

func (f *fakePurger) Invalidate(ctx context.Context) error {
	f.invalidated++
	return nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestSnapshotWarmupTask(t *testing.T) {
	task, err := NewSnapshotWarmupTask("startup")
	require.NoError(t, err)
	require.Equal(t, TaskSnapshotWarmup, task.Type())

	var payload SnapshotWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "startup", payload.Reason)
}

func TestSnapshotWarmupRefreshes(t *testing.T) {
	refresher := &fakeRefresher{}
	job := NewSnapshotWarmupJob(refresher, nil, testMetrics())
	task, err := NewSnapshotWarmupTask("")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, refresher.calls)

	refresher.err = errors.New("db down")
	require.ErrorIs(t, job.Handle(context.Background(), task), refresher.err)
}

func TestSnapshotWarmupRejectsBadPayload(t *testing.T) {
	job := NewSnapshotWarmupJob(&fakeRefresher{}, nil, testMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskSnapshotWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRetentionPurgeInvalidatesOnlyWhenRowsRemoved(t *testing.T) {
	task, err := NewRetentionPurgeTask()
	require.NoError(t, err)

	store := &fakePurger{}
	job := NewRetentionPurgeJob(store, store, nil, testMetrics())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, store.invalidated)

	store.purged = 42
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, store.invalidated)

	store.err = errors.New("locked")
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, store.invalidated)
}

func TestServeMuxDispatches(t *testing.T) {
	refresher := &fakeRefresher{}
	store := &fakePurger{purged: 1}
	mux := NewServeMux([]TaskHandler{
		{Type: TaskSnapshotWarmup, Handler: NewSnapshotWarmupJob(refresher, nil, testMetrics()).Handle},
		{Type: TaskRetentionPurge, Handler: NewRetentionPurgeJob(store, store, nil, testMetrics()).Handle},
		{Type: "", Handler: nil},
	})

	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskSnapshotWarmup, nil)))
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskRetentionPurge, nil)))
	require.Equal(t, 1, refresher.calls)
	require.Equal(t, 1, store.invalidated)
	require.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("unknown:task", nil)))
}

func TestNilJobsAreRejected(t *testing.T) {
	var warm *SnapshotWarmupJob
	require.Error(t, warm.Handle(context.Background(), asynq.NewTask(TaskSnapshotWarmup, nil)))
	var purge *RetentionPurgeJob
	require.Error(t, purge.Handle(context.Background(), asynq.NewTask(TaskRetentionPurge, nil)))
}
