package attendance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort defines data access methods for attendance.
type RepositoryPort interface {
	UpsertBatch(ctx context.Context, entries []Entry) error
	ForStudents(ctx context.Context, studentIDs []int64, date time.Time) (map[int64]Entry, error)
	SummaryForStudent(ctx context.Context, studentID int64, from, to time.Time) (Summary, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Service handles attendance marking and summaries.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// MarkDay records statuses for the given students on one day. Invalid
// statuses abort the whole batch before any write.
func (s *Service) MarkDay(ctx context.Context, actorID int64, date time.Time, marks map[int64]Status) error {
	if date.IsZero() {
		return fmt.Errorf("attendance: date required")
	}
	for studentID, status := range marks {
		if _, ok := ParseStatus(string(status)); !ok {
			return fmt.Errorf("attendance: invalid status %q for student %d", status, studentID)
		}
	}
	day := date.Truncate(24 * time.Hour)
	entries := make([]Entry, 0, len(marks))
	for studentID, status := range marks {
		entries = append(entries, Entry{
			StudentID:  studentID,
			Date:       day,
			Status:     status,
			RecordedBy: actorID,
		})
	}
	if err := s.repo.UpsertBatch(ctx, entries); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Append(ctx, shared.AuditEvent{
			ActorID:  actorID,
			Action:   "attendance.mark",
			Entity:   "attendance",
			EntityID: day.Format("2006-01-02"),
			Meta:     map[string]any{"students": strconv.Itoa(len(marks))},
		})
	}
	return nil
}

// Existing returns the already recorded entries for students on a day.
func (s *Service) Existing(ctx context.Context, studentIDs []int64, date time.Time) (map[int64]Entry, error) {
	if len(studentIDs) == 0 {
		return map[int64]Entry{}, nil
	}
	return s.repo.ForStudents(ctx, studentIDs, date.Truncate(24*time.Hour))
}

// MonthSummary aggregates one student's entries for the month holding t.
func (s *Service) MonthSummary(ctx context.Context, studentID int64, t time.Time) (Summary, error) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.SummaryForStudent(ctx, studentID, from, from.AddDate(0, 1, 0))
}
