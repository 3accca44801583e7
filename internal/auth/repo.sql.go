package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// Repository defines persistence operations for the auth module. It
// doubles as the backing store the authorization gate re-verifies
// against on every request.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (authz.Subject, error)
	CreateSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email for credential checks.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, is_active, created_at, updated_at
		 FROM accounts WHERE lower(email) = lower($1)`, email)
	var account Account
	var role string
	if err := row.Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash, &role, &account.IsActive, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.Role, _ = authz.ParseRole(role)
	return &account, nil
}

// FindByID fetches the authoritative liveness view of an account. A
// role value outside the closed set comes back as the zero Role, which
// the permission matrix resolves to no access.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (authz.Subject, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, role, is_active FROM accounts WHERE id = $1`, id)
	var subject authz.Subject
	var role string
	if err := row.Scan(&subject.ID, &subject.Email, &subject.Name, &role, &subject.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Subject{}, shared.ErrNotFound
		}
		return authz.Subject{}, err
	}
	subject.Role, _ = authz.ParseRole(role)
	return subject, nil
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, accountID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session row.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
var _ authz.UserStore = (*PGRepository)(nil)
