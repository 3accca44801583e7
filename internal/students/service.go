package students

import (
	"context"
	"strconv"
	"strings"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort defines data access methods for students.
type RepositoryPort interface {
	List(ctx context.Context, query string, limit, offset int) ([]Student, int, error)
	ListByClass(ctx context.Context, className string) ([]Student, error)
	Get(ctx context.Context, id int64) (Student, error)
	GetByAccount(ctx context.Context, accountID int64) (Student, error)
	Create(ctx context.Context, s Student) (Student, error)
	Update(ctx context.Context, s Student) (Student, error)
	Count(ctx context.Context) (int, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Service handles student business logic.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of students plus pagination metadata.
func (s *Service) List(ctx context.Context, query string, page, perPage int) ([]Student, shared.Pagination, error) {
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

// ListByClass returns students of one class.
func (s *Service) ListByClass(ctx context.Context, className string) ([]Student, error) {
	return s.repo.ListByClass(ctx, strings.TrimSpace(className))
}

// Get fetches one student.
func (s *Service) Get(ctx context.Context, id int64) (Student, error) {
	return s.repo.Get(ctx, id)
}

// GetByAccount fetches the student linked to a portal account.
func (s *Service) GetByAccount(ctx context.Context, accountID int64) (Student, error) {
	return s.repo.GetByAccount(ctx, accountID)
}

// Create validates and stores a new student.
func (s *Service) Create(ctx context.Context, actorID int64, student Student) (Student, error) {
	student.AdmissionNo = strings.TrimSpace(student.AdmissionNo)
	student.FullName = strings.TrimSpace(student.FullName)
	created, err := s.repo.Create(ctx, student)
	if err != nil {
		return Student{}, err
	}
	s.record(ctx, actorID, "students.create", created.ID)
	return created, nil
}

// Update validates and stores changes to a student.
func (s *Service) Update(ctx context.Context, actorID int64, student Student) (Student, error) {
	student.AdmissionNo = strings.TrimSpace(student.AdmissionNo)
	student.FullName = strings.TrimSpace(student.FullName)
	updated, err := s.repo.Update(ctx, student)
	if err != nil {
		return Student{}, err
	}
	s.record(ctx, actorID, "students.update", updated.ID)
	return updated, nil
}

// Count returns the number of enrolled students.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, studentID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "student",
		EntityID: strconv.FormatInt(studentID, 10),
	})
}
