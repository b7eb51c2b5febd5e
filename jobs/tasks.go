package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotWarmup rebuilds the cached dashboard snapshot.
	TaskSnapshotWarmup = "admin:snapshot_warmup"
	// TaskRetentionPurge deletes audit entries past their retention date.
	TaskRetentionPurge = "audit:retention_purge"
)

// Cron schedules in the UTC scheduler location.
const (
	SnapshotWarmupSpec = "*/5 * * * *"
	RetentionPurgeSpec = "30 3 * * *"
)

// SnapshotWarmupPayload carries the trigger of a warmup run.
type SnapshotWarmupPayload struct {
	Reason string `json:"reason"`
}

// RetentionPurgePayload optionally pins the purge cutoff. A zero cutoff
// means now.
type RetentionPurgePayload struct {
	Cutoff time.Time `json:"cutoff,omitempty"`
}

// NewSnapshotWarmupTask constructs a warmup task.
func NewSnapshotWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(SnapshotWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotWarmup, data, asynq.Queue(QueueDefault), asynq.Timeout(time.Minute)), nil
}

// NewRetentionPurgeTask constructs a retention purge task.
func NewRetentionPurgeTask() (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPurgePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionPurge, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
