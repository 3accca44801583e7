package exams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const examColumns = `id, name, class_name, subject, max_score, held_on, created_by, created_at, updated_at`

func scanExam(row pgx.Row) (Exam, error) {
	var e Exam
	err := row.Scan(&e.ID, &e.Name, &e.ClassName, &e.Subject, &e.MaxScore, &e.HeldOn, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

// List returns a page of exams, newest first, optionally filtered by class.
func (r *Repository) List(ctx context.Context, className string, limit, offset int) ([]Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM exams WHERE $1 = '' OR class_name = $1`, className).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE $1 = '' OR class_name = $1
		 ORDER BY held_on DESC, id DESC LIMIT $2 OFFSET $3`, className, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Get returns one exam by id.
func (r *Repository) Get(ctx context.Context, id int64) (Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Exam{}, shared.ErrNotFound
	}
	return e, err
}

// Create inserts a new exam and returns it with generated fields.
func (r *Repository) Create(ctx context.Context, e Exam) (Exam, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (name, class_name, subject, max_score, held_on, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Name, e.ClassName, e.Subject, e.MaxScore, e.HeldOn, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// UpsertMark writes one student's score, replacing an earlier entry for
// the same exam.
func (r *Repository) UpsertMark(ctx context.Context, m Mark) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_marks (exam_id, student_id, score)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id)
		 DO UPDATE SET score = EXCLUDED.score, updated_at = now()`,
		m.ExamID, m.StudentID, m.Score)
	return err
}

// MarksForExam returns all recorded marks for an exam keyed by student.
func (r *Repository) MarksForExam(ctx context.Context, examID int64) (map[int64]Mark, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, score, created_at, updated_at
		 FROM exam_marks WHERE exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]Mark)
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.ID, &m.ExamID, &m.StudentID, &m.Score, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result[m.StudentID] = m
	}
	return result, rows.Err()
}

// MarksForStudent returns a student's marks joined with their exams,
// newest exam first.
func (r *Repository) MarksForStudent(ctx context.Context, studentID int64) ([]Exam, []Mark, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.name, e.class_name, e.subject, e.max_score, e.held_on, e.created_by, e.created_at, e.updated_at,
		        m.id, m.exam_id, m.student_id, m.score, m.created_at, m.updated_at
		 FROM exam_marks m
		 JOIN exams e ON e.id = m.exam_id
		 WHERE m.student_id = $1
		 ORDER BY e.held_on DESC, e.id DESC`, studentID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var es []Exam
	var ms []Mark
	for rows.Next() {
		var e Exam
		var m Mark
		if err := rows.Scan(&e.ID, &e.Name, &e.ClassName, &e.Subject, &e.MaxScore, &e.HeldOn, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
			&m.ID, &m.ExamID, &m.StudentID, &m.Score, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, nil, err
		}
		es = append(es, e)
		ms = append(ms, m)
	}
	return es, ms, rows.Err()
}
