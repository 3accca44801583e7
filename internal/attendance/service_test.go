package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

type memoryRepo struct {
	entries map[string]Entry // keyed by studentID|date
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]Entry)}
}

func key(studentID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", studentID, date.Format("2006-01-02"))
}

func (r *memoryRepo) UpsertBatch(ctx context.Context, batch []Entry) error {
	for _, e := range batch {
		r.entries[key(e.StudentID, e.Date)] = e
	}
	return nil
}

func (r *memoryRepo) ForStudents(ctx context.Context, studentIDs []int64, date time.Time) (map[int64]Entry, error) {
	result := make(map[int64]Entry)
	for _, id := range studentIDs {
		if e, ok := r.entries[key(id, date)]; ok {
			result[id] = e
		}
	}
	return result, nil
}

func (r *memoryRepo) SummaryForStudent(ctx context.Context, studentID int64, from, to time.Time) (Summary, error) {
	var summary Summary
	for _, e := range r.entries {
		if e.StudentID != studentID || e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		switch e.Status {
		case StatusPresent:
			summary.Present++
		case StatusAbsent:
			summary.Absent++
		case StatusLate:
			summary.Late++
		case StatusExcused:
			summary.Excused++
		}
	}
	return summary, nil
}

type nopAuditor struct{ events int }

func (a *nopAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	a.events++
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMarkDayRecordsBatch(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &nopAuditor{}
	svc := NewService(repo, auditor)

	err := svc.MarkDay(context.Background(), 99, day(2026, time.March, 2), map[int64]Status{
		1: StatusPresent,
		2: StatusAbsent,
		3: StatusLate,
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 3)
	require.Equal(t, 1, auditor.events)

	existing, err := svc.Existing(context.Background(), []int64{1, 2, 3}, day(2026, time.March, 2))
	require.NoError(t, err)
	require.Equal(t, StatusAbsent, existing[2].Status)
	require.Equal(t, int64(99), existing[2].RecordedBy)
}

func TestMarkDayOverwritesSameDay(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.March, 2), map[int64]Status{7: StatusAbsent}))
	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.March, 2), map[int64]Status{7: StatusExcused}))

	existing, err := svc.Existing(ctx, []int64{7}, day(2026, time.March, 2))
	require.NoError(t, err)
	require.Len(t, repo.entries, 1, "re-marking the same day must not duplicate")
	require.Equal(t, StatusExcused, existing[7].Status)
}

func TestMarkDayRejectsInvalidStatusBeforeAnyWrite(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	err := svc.MarkDay(context.Background(), 1, day(2026, time.March, 2), map[int64]Status{
		1: StatusPresent,
		2: Status("vanished"),
	})
	require.Error(t, err)
	require.Empty(t, repo.entries)
}

func TestMonthSummaryBounds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.February, 27), map[int64]Status{5: StatusPresent}))
	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.March, 2), map[int64]Status{5: StatusAbsent}))
	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.March, 3), map[int64]Status{5: StatusLate}))
	require.NoError(t, svc.MarkDay(ctx, 1, day(2026, time.April, 1), map[int64]Status{5: StatusPresent}))

	summary, err := svc.MonthSummary(ctx, 5, day(2026, time.March, 15))
	require.NoError(t, err)
	require.Equal(t, Summary{Absent: 1, Late: 1}, summary)
	require.Equal(t, 2, summary.Total())
}
