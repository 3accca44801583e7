package audit

import (
	"context"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastLimit  int
	lastOffset int
}

func (s *stubTimelineRepo) Window(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubTimelineRepo) All(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	return s.rows, nil
}

func mockRow(at string, actor, action, entity, entityID string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{At: ts, Actor: actor, Action: action, Entity: entity, EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2026-03-10T10:00:00Z", "Head Admin", "students.update", "student", "1"),
			mockRow("2026-03-09T09:00:00Z", "Head Admin", "fees.payment", "fee_transaction", "2"),
			mockRow("2026-03-08T08:00:00Z", "Office Clerk", "admissions.create", "admission_inquiry", "3"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineLastPage(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{mockRow("2026-03-10T10:00:00Z", "Head Admin", "users.create", "account", "4")},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.HasNext {
		t.Fatalf("expected hasNext false")
	}
	if result.Paging.PrevPage != 1 {
		t.Fatalf("expected prev page 1, got %d", result.Paging.PrevPage)
	}
	if repo.lastOffset != 20 {
		t.Fatalf("expected offset 20, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineCapsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("expected capped limit 51, got %d", repo.lastLimit)
	}
}

func TestCSVExport(t *testing.T) {
	rows := []TimelineRow{
		mockRow("2026-03-10T10:00:00Z", "Head Admin", "students.update", "student", "1"),
	}
	payload, err := CSVExporter{}.WriteCSV(rows)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	got := string(payload)
	want := "at,actor,action,entity,entity_id,meta\n2026-03-10T10:00:00Z,Head Admin,students.update,student,1,\n"
	if got != want {
		t.Fatalf("unexpected csv:\n%s", got)
	}
}
