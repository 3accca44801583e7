package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort abstracts account persistence.
type RepositoryPort interface {
	List(ctx context.Context, query string, limit, offset int) ([]Account, int, error)
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, a Account, passwordHash string) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetRole(ctx context.Context, id int64, role authz.Role) error
	CountByRole(ctx context.Context) (map[authz.Role]int, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Service handles account management.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, query string, page, perPage int) ([]Account, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.List(ctx, strings.TrimSpace(query), perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, actorID int64, a Account, password string) (Account, error) {
	if _, ok := authz.ParseRole(string(a.Role)); !ok {
		return Account{}, fmt.Errorf("users: unknown role %q", a.Role)
	}
	if len(password) < 8 {
		return Account{}, fmt.Errorf("users: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	a.IsActive = true
	created, err := s.repo.Create(ctx, a, string(hash))
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actorID, "users.create", created.ID, map[string]any{"role": string(created.Role)})
	return created, nil
}

// SetActive activates or deactivates an account. An actor cannot
// deactivate their own account; that would lock the admin area.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) error {
	if !active && actorID == id {
		return fmt.Errorf("users: cannot deactivate own account")
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	action := "users.deactivate"
	if active {
		action = "users.activate"
	}
	s.record(ctx, actorID, action, id, nil)
	return nil
}

// SetRole changes an account's role. The change takes effect on the
// subject's next request, when the gate re-reads the account.
func (s *Service) SetRole(ctx context.Context, actorID, id int64, role authz.Role) error {
	if _, ok := authz.ParseRole(string(role)); !ok {
		return fmt.Errorf("users: unknown role %q", role)
	}
	if actorID == id {
		return fmt.Errorf("users: cannot change own role")
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return err
	}
	s.record(ctx, actorID, "users.role", id, map[string]any{"role": string(role)})
	return nil
}

// CountByRole returns account totals per role for the dashboard.
func (s *Service) CountByRole(ctx context.Context) (map[authz.Role]int, error) {
	return s.repo.CountByRole(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
