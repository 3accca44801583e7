package attendance

import "time"

// Status is a closed set of attendance outcomes.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Statuses lists all valid statuses in marking-form order.
func Statuses() []Status {
	return []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}
}

// ParseStatus validates a submitted status value.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return Status(s), true
	}
	return "", false
}

// Entry is one student's attendance record for one day. There is at
// most one entry per (student, date); re-marking overwrites.
type Entry struct {
	ID         int64
	StudentID  int64
	Date       time.Time
	Status     Status
	RecordedBy int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary aggregates one student's entries over a period.
type Summary struct {
	Present int
	Absent  int
	Late    int
	Excused int
}

// Total returns the number of marked days.
func (s Summary) Total() int {
	return s.Present + s.Absent + s.Late + s.Excused
}
