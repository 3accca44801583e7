package staff

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

const memberColumns = `id, full_name, subject, phone, email, is_active, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.FullName, &m.Subject, &m.Phone, &m.Email, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// List returns a page of staff members.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Member, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM staff ORDER BY full_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Get fetches one staff member.
func (r *Repository) Get(ctx context.Context, id int64) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

// Create inserts a staff member.
func (r *Repository) Create(ctx context.Context, m Member) (Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`INSERT INTO staff (full_name, subject, phone, email, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING `+memberColumns,
		m.FullName, m.Subject, m.Phone, m.Email, m.IsActive))
}

// Update rewrites a staff member.
func (r *Repository) Update(ctx context.Context, m Member) (Member, error) {
	updated, err := scanMember(r.pool.QueryRow(ctx,
		`UPDATE staff SET full_name=$2, subject=$3, phone=$4, email=$5, is_active=$6, updated_at=NOW()
		 WHERE id=$1 RETURNING `+memberColumns,
		m.ID, m.FullName, m.Subject, m.Phone, m.Email, m.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, err
	}
	return updated, nil
}

// Count returns the number of active staff members.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM staff WHERE is_active`).Scan(&n)
	return n, err
}
