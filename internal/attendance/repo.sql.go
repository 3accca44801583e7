package attendance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard-app/schoolyard/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertBatch records or overwrites statuses for a day in one
// transaction. Either every entry lands or none does.
func (r *Repository) UpsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(ctx,
				`INSERT INTO attendance_entries (student_id, date, status, recorded_by, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, NOW(), NOW())
				 ON CONFLICT (student_id, date)
				 DO UPDATE SET status = EXCLUDED.status, recorded_by = EXCLUDED.recorded_by, updated_at = NOW()`,
				e.StudentID, e.Date, string(e.Status), e.RecordedBy)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ForStudents returns existing entries for the given students on a day.
func (r *Repository) ForStudents(ctx context.Context, studentIDs []int64, date time.Time) (map[int64]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, date, status, recorded_by, created_at, updated_at
		 FROM attendance_entries WHERE student_id = ANY($1) AND date = $2`, studentIDs, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]Entry)
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Date, &status, &e.RecordedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		result[e.StudentID] = e
	}
	return result, rows.Err()
}

// SummaryForStudent aggregates one student's entries in [from, to).
func (r *Repository) SummaryForStudent(ctx context.Context, studentID int64, from, to time.Time) (Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, count(*) FROM attendance_entries
		 WHERE student_id = $1 AND date >= $2 AND date < $3 GROUP BY status`,
		studentID, from, to)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	var summary Summary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		switch Status(status) {
		case StatusPresent:
			summary.Present = count
		case StatusAbsent:
			summary.Absent = count
		case StatusLate:
			summary.Late = count
		case StatusExcused:
			summary.Excused = count
		}
	}
	return summary, rows.Err()
}

// AbsenceLeaders returns students with the most absences in [from, to),
// used by the attendance digest job.
func (r *Repository) AbsenceLeaders(ctx context.Context, from, to time.Time, limit int) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, count(*) FROM attendance_entries
		 WHERE status = 'absent' AND date >= $1 AND date < $2
		 GROUP BY student_id ORDER BY count(*) DESC LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		result[id] = count
	}
	return result, rows.Err()
}
