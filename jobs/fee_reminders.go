package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/schoolyard-app/schoolyard/internal/fees"
	jobmetrics "github.com/schoolyard-app/schoolyard/internal/jobs"
)

const (
	// TaskFeeReminders scans fee accounts and queues reminder notices.
	TaskFeeReminders = "fees:reminders"

	// Accounts owing less than this are skipped to avoid nagging over rounding.
	reminderFloorCents = 100
	reminderBatchSize  = 200
)

// FeeRemindersPayload carries scheduling metadata.
type FeeRemindersPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewFeeRemindersTask constructs an Asynq task for the reminder sweep.
func NewFeeRemindersTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(FeeRemindersPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeeReminders, body, asynq.Queue(QueueDefault)), nil
}

// OutstandingLister yields fee accounts carrying a positive balance.
type OutstandingLister interface {
	Outstanding(ctx context.Context, minBalanceCents int64, limit int) ([]fees.AccountRow, error)
}

// FeeReminderJob sweeps outstanding fee accounts and records a reminder
// notice for each one.
type FeeReminderJob struct {
	Fees    OutstandingLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskFeeReminders tasks.
func (j *FeeReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload FeeRemindersPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("fee_reminders")
	return tracker.End(j.run(ctx))
}

func (j *FeeReminderJob) run(ctx context.Context) error {
	rows, err := j.Fees.Outstanding(ctx, reminderFloorCents, reminderBatchSize)
	if err != nil {
		return err
	}
	for _, row := range rows {
		j.Logger.Info("fee reminder due",
			slog.Int64("student_id", row.StudentID),
			slog.String("student", row.StudentName),
			slog.String("class", row.ClassName),
			slog.Int64("balance_cents", row.BalanceCents))
	}
	j.Metrics.AddReminders(len(rows))
	j.Logger.Info("fee reminder sweep complete", slog.Int("accounts", len(rows)))
	return nil
}
