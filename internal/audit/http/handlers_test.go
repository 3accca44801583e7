package audithttp

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/schoolyard-app/schoolyard/internal/audit"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func newFilterHandler() *Handler {
	h := &Handler{now: fixedNow}
	return h
}

func TestParseFiltersDefaultsToLastWeek(t *testing.T) {
	h := newFilterHandler()
	r := httptest.NewRequest("GET", "/admin/audit", nil)
	filters, err := h.parseFilters(r)
	if err != nil {
		t.Fatalf("parse filters: %v", err)
	}
	if filters.To.Sub(filters.From) != 7*24*time.Hour {
		t.Fatalf("expected 7 day window, got %v", filters.To.Sub(filters.From))
	}
	if filters.PageSize != defaultPageSize {
		t.Fatalf("expected default page size, got %d", filters.PageSize)
	}
}

func TestParseFiltersReadsQuery(t *testing.T) {
	h := newFilterHandler()
	r := httptest.NewRequest("GET", "/admin/audit?from=2026-03-01&to=2026-03-10&actor=clerk&entity=student&action=students.update&page=3&page_size=10", nil)
	filters, err := h.parseFilters(r)
	if err != nil {
		t.Fatalf("parse filters: %v", err)
	}
	want := audit.TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Actor:    "clerk",
		Entity:   "student",
		Action:   "students.update",
		Page:     3,
		PageSize: 10,
	}
	if filters != want {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestParseFiltersRejectsBadRanges(t *testing.T) {
	h := newFilterHandler()

	r := httptest.NewRequest("GET", "/admin/audit?from=2026-03-10&to=2026-03-01", nil)
	if _, err := h.parseFilters(r); err == nil {
		t.Fatalf("expected error for reversed range")
	}

	r = httptest.NewRequest("GET", "/admin/audit?from=2025-01-01&to=2026-01-01", nil)
	if _, err := h.parseFilters(r); err == nil {
		t.Fatalf("expected error for oversized range")
	}

	r = httptest.NewRequest("GET", "/admin/audit?from=yesterday", nil)
	if _, err := h.parseFilters(r); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestParseFiltersCapsPageSize(t *testing.T) {
	h := newFilterHandler()
	r := httptest.NewRequest("GET", "/admin/audit?page_size=500", nil)
	filters, err := h.parseFilters(r)
	if err != nil {
		t.Fatalf("parse filters: %v", err)
	}
	if filters.PageSize != maxPageSize {
		t.Fatalf("expected capped page size %d, got %d", maxPageSize, filters.PageSize)
	}
}
