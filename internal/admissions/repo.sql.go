package admissions

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

const inquiryColumns = `id, reference, child_name, guardian_name, phone, email, class_applied, notes, stage, created_at, updated_at`

func scanInquiry(row pgx.Row) (Inquiry, error) {
	var q Inquiry
	var stage string
	err := row.Scan(&q.ID, &q.Reference, &q.ChildName, &q.GuardianName, &q.Phone, &q.Email, &q.ClassApplied, &q.Notes, &stage, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Inquiry{}, err
	}
	q.Stage = Stage(stage)
	return q, nil
}

// List returns a page of inquiries, optionally filtered by stage,
// newest first.
func (r *Repository) List(ctx context.Context, stage string, limit, offset int) ([]Inquiry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM admission_inquiries WHERE $1 = '' OR stage = $1`, stage).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+inquiryColumns+` FROM admission_inquiries
		 WHERE $1 = '' OR stage = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, stage, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []Inquiry
	for rows.Next() {
		q, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Get returns one inquiry by id.
func (r *Repository) Get(ctx context.Context, id int64) (Inquiry, error) {
	q, err := scanInquiry(r.pool.QueryRow(ctx,
		`SELECT `+inquiryColumns+` FROM admission_inquiries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Inquiry{}, shared.ErrNotFound
	}
	return q, err
}

// Create inserts a new inquiry.
func (r *Repository) Create(ctx context.Context, q Inquiry) (Inquiry, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admission_inquiries (reference, child_name, guardian_name, phone, email, class_applied, notes, stage)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		q.Reference, q.ChildName, q.GuardianName, q.Phone, q.Email, q.ClassApplied, q.Notes, string(q.Stage)).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

// UpdateStage moves an inquiry to a new stage, guarding against
// concurrent transitions by matching the expected current stage.
func (r *Repository) UpdateStage(ctx context.Context, id int64, from, to Stage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admission_inquiries SET stage = $1, updated_at = now() WHERE id = $2 AND stage = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByStage returns inquiry counts keyed by stage.
func (r *Repository) CountByStage(ctx context.Context) (map[Stage]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stage, count(*) FROM admission_inquiries GROUP BY stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		result[Stage(stage)] = count
	}
	return result, rows.Err()
}
