package students

import "time"

// Student represents an enrolled student record.
type Student struct {
	ID            int64
	AdmissionNo   string
	FullName      string
	ClassName     string
	GuardianName  string
	GuardianPhone string
	DateOfBirth   time.Time
	AccountID     int64 // linked portal account, 0 when none
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
