package uploads

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record stores an issued upload.
func (r *Repository) Record(ctx context.Context, u Upload) (Upload, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO uploads (object_key, entity, entity_id, file_name, content_type, issued_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, issued_at`,
		u.ObjectKey, u.Entity, u.EntityID, u.FileName, u.ContentType, u.IssuedBy).
		Scan(&u.ID, &u.IssuedAt)
	return u, err
}

// Recent lists the most recently issued uploads across entities.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Upload, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, object_key, entity, entity_id, file_name, content_type, issued_by, issued_at
		 FROM uploads ORDER BY issued_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.ObjectKey, &u.Entity, &u.EntityID, &u.FileName, &u.ContentType, &u.IssuedBy, &u.IssuedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// ForEntity lists issued uploads for one entity, newest first.
func (r *Repository) ForEntity(ctx context.Context, entity string, entityID int64) ([]Upload, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, object_key, entity, entity_id, file_name, content_type, issued_by, issued_at
		 FROM uploads WHERE entity = $1 AND entity_id = $2 ORDER BY issued_at DESC`, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.ObjectKey, &u.Entity, &u.EntityID, &u.FileName, &u.ContentType, &u.IssuedBy, &u.IssuedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
