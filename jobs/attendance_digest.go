package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/schoolyard-app/schoolyard/internal/jobs"
)

const (
	// TaskAttendanceDigest summarises the past week's absences.
	TaskAttendanceDigest = "attendance:digest"

	digestWindowDays = 7
	digestTopN       = 10
)

// AttendanceDigestPayload carries scheduling metadata.
type AttendanceDigestPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAttendanceDigestTask constructs an Asynq task for the weekly digest.
func NewAttendanceDigestTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AttendanceDigestPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttendanceDigest, body, asynq.Queue(QueueDefault)), nil
}

// AbsenceSource reports absence counts per student over a window.
type AbsenceSource interface {
	AbsenceLeaders(ctx context.Context, from, to time.Time, limit int) (map[int64]int, error)
}

// AttendanceDigestJob logs the students with the most absences over the
// trailing week so office staff can follow up.
type AttendanceDigestJob struct {
	Attendance AbsenceSource
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Now        func() time.Time
}

// Handle processes TaskAttendanceDigest tasks.
func (j *AttendanceDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AttendanceDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("attendance_digest")
	return tracker.End(j.run(ctx))
}

func (j *AttendanceDigestJob) run(ctx context.Context) error {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}
	to := now.Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -digestWindowDays)

	leaders, err := j.Attendance.AbsenceLeaders(ctx, from, to, digestTopN)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(leaders))
	for id := range leaders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if leaders[ids[a]] != leaders[ids[b]] {
			return leaders[ids[a]] > leaders[ids[b]]
		}
		return ids[a] < ids[b]
	})

	for _, id := range ids {
		j.Logger.Info("absence digest entry",
			slog.Int64("student_id", id),
			slog.Int("absences", leaders[id]),
			slog.Time("from", from),
			slog.Time("to", to))
	}
	j.Logger.Info("attendance digest complete", slog.Int("students", len(ids)))
	return nil
}
