package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/schoolyard-app/schoolyard/internal/jobs"
)

// TaskAuditRetention purges audit rows past the retention window.
const TaskAuditRetention = "audit:retention"

// AuditRetentionPayload carries scheduling metadata.
type AuditRetentionPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAuditRetentionTask constructs an Asynq task for the retention purge.
func NewAuditRetentionTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AuditRetentionPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}

// AuditPurger deletes audit rows older than the cutoff.
type AuditPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// AuditRetentionJob trims the audit log to the configured retention window
// and sweeps stale idempotency keys in the same pass.
type AuditRetentionJob struct {
	Audit       AuditPurger
	Idempotency KeyCleaner
	Retention   time.Duration
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("audit_retention")
	return tracker.End(j.run(ctx))
}

func (j *AuditRetentionJob) run(ctx context.Context) error {
	retention := j.Retention
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-retention)

	purged, err := j.Audit.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	j.Logger.Info("audit retention purge",
		slog.Int64("rows", purged),
		slog.Time("cutoff", cutoff))

	if j.Idempotency != nil {
		if err := j.Idempotency.Cleanup(ctx, retention); err != nil {
			j.Logger.Warn("idempotency cleanup", slog.Any("error", err))
		}
	}
	return nil
}
