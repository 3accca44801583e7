package students

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const studentColumns = `id, admission_no, full_name, class_name, guardian_name, guardian_phone, date_of_birth, COALESCE(account_id, 0), created_at, updated_at`

func scanStudent(row pgx.Row) (Student, error) {
	var s Student
	var dob *time.Time
	err := row.Scan(&s.ID, &s.AdmissionNo, &s.FullName, &s.ClassName, &s.GuardianName, &s.GuardianPhone, &dob, &s.AccountID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Student{}, err
	}
	if dob != nil {
		s.DateOfBirth = *dob
	}
	return s, nil
}

// List returns a page of students matching the optional search query.
func (r *Repository) List(ctx context.Context, query string, limit, offset int) ([]Student, int, error) {
	pattern := "%" + query + "%"
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM students WHERE $1 = '%%' OR full_name ILIKE $1 OR admission_no ILIKE $1`,
		pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE $1 = '%%' OR full_name ILIKE $1 OR admission_no ILIKE $1
		 ORDER BY full_name LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ListByClass returns all students of a class ordered by name.
func (r *Repository) ListByClass(ctx context.Context, className string) ([]Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_name = $1 ORDER BY full_name`, className)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Get fetches one student by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, shared.ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

// GetByAccount fetches the student linked to a portal account.
func (r *Repository) GetByAccount(ctx context.Context, accountID int64) (Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE account_id = $1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, shared.ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

// Create inserts a student, mapping admission number conflicts onto
// shared.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, s Student) (Student, error) {
	var dob *time.Time
	if !s.DateOfBirth.IsZero() {
		dob = &s.DateOfBirth
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO students (admission_no, full_name, class_name, guardian_name, guardian_phone, date_of_birth, account_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NOW(), NOW())
		 RETURNING `+studentColumns,
		s.AdmissionNo, s.FullName, s.ClassName, s.GuardianName, s.GuardianPhone, dob, s.AccountID)
	created, err := scanStudent(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Student{}, shared.ErrDuplicate
		}
		return Student{}, err
	}
	return created, nil
}

// Update rewrites a student record.
func (r *Repository) Update(ctx context.Context, s Student) (Student, error) {
	var dob *time.Time
	if !s.DateOfBirth.IsZero() {
		dob = &s.DateOfBirth
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE students SET admission_no=$2, full_name=$3, class_name=$4, guardian_name=$5, guardian_phone=$6, date_of_birth=$7, account_id=NULLIF($8, 0), updated_at=NOW()
		 WHERE id=$1 RETURNING `+studentColumns,
		s.ID, s.AdmissionNo, s.FullName, s.ClassName, s.GuardianName, s.GuardianPhone, dob, s.AccountID)
	updated, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Student{}, shared.ErrDuplicate
		}
		return Student{}, err
	}
	return updated, nil
}

// Count returns total number of students.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM students`).Scan(&n)
	return n, err
}
