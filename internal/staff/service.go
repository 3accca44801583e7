package staff

import (
	"context"
	"strconv"
	"strings"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort defines data access methods for staff.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int) ([]Member, int, error)
	Get(ctx context.Context, id int64) (Member, error)
	Create(ctx context.Context, m Member) (Member, error)
	Update(ctx context.Context, m Member) (Member, error)
	Count(ctx context.Context) (int, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Service handles staff business logic.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of staff members.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Member, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Get fetches one staff member.
func (s *Service) Get(ctx context.Context, id int64) (Member, error) {
	return s.repo.Get(ctx, id)
}

// Save creates or updates a staff member.
func (s *Service) Save(ctx context.Context, actorID int64, m Member) (Member, error) {
	m.FullName = strings.TrimSpace(m.FullName)
	var (
		saved  Member
		err    error
		action string
	)
	if m.ID == 0 {
		saved, err = s.repo.Create(ctx, m)
		action = "staff.create"
	} else {
		saved, err = s.repo.Update(ctx, m)
		action = "staff.update"
	}
	if err != nil {
		return Member{}, err
	}
	if s.audit != nil {
		_ = s.audit.Append(ctx, shared.AuditEvent{
			ActorID:  actorID,
			Action:   action,
			Entity:   "staff",
			EntityID: strconv.FormatInt(saved.ID, 10),
		})
	}
	return saved, nil
}

// Count returns the number of active staff members.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
