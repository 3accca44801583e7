package exams

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort abstracts persistence for exams and marks.
type RepositoryPort interface {
	List(ctx context.Context, className string, limit, offset int) ([]Exam, int, error)
	Get(ctx context.Context, id int64) (Exam, error)
	Create(ctx context.Context, e Exam) (Exam, error)
	UpsertMark(ctx context.Context, m Mark) error
	MarksForExam(ctx context.Context, examID int64) (map[int64]Mark, error)
	MarksForStudent(ctx context.Context, studentID int64) ([]Exam, []Mark, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Service handles exam definitions and mark entry.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of exams optionally filtered by class.
func (s *Service) List(ctx context.Context, className string, page, perPage int) ([]Exam, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	items, total, err := s.repo.List(ctx, strings.TrimSpace(className), perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get returns one exam.
func (s *Service) Get(ctx context.Context, id int64) (Exam, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new exam definition.
func (s *Service) Create(ctx context.Context, actorID int64, exam Exam) (Exam, error) {
	if exam.MaxScore <= 0 {
		return Exam{}, fmt.Errorf("exams: max score must be positive")
	}
	exam.CreatedBy = actorID
	created, err := s.repo.Create(ctx, exam)
	if err != nil {
		return Exam{}, err
	}
	s.record(ctx, actorID, "exams.create", created.ID, nil)
	return created, nil
}

// EnterMarks records scores for students on one exam. Scores outside
// 0..MaxScore abort the whole batch before any write.
func (s *Service) EnterMarks(ctx context.Context, actorID, examID int64, scores map[int64]int) error {
	exam, err := s.repo.Get(ctx, examID)
	if err != nil {
		return err
	}
	for studentID, score := range scores {
		if score < 0 || score > exam.MaxScore {
			return fmt.Errorf("exams: score %d out of range for student %d (max %d)", score, studentID, exam.MaxScore)
		}
	}
	for studentID, score := range scores {
		if err := s.repo.UpsertMark(ctx, Mark{ExamID: examID, StudentID: studentID, Score: score}); err != nil {
			return err
		}
	}
	s.record(ctx, actorID, "exams.marks.enter", examID, map[string]any{"students": strconv.Itoa(len(scores))})
	return nil
}

// Marks returns the recorded marks for an exam keyed by student.
func (s *Service) Marks(ctx context.Context, examID int64) (map[int64]Mark, error) {
	return s.repo.MarksForExam(ctx, examID)
}

// StudentResults returns a student's graded results, newest first.
func (s *Service) StudentResults(ctx context.Context, studentID int64) ([]Exam, []Result, error) {
	es, ms, err := s.repo.MarksForStudent(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	results := make([]Result, len(ms))
	for i, m := range ms {
		results[i] = ResultOf(es[i], m)
	}
	return es, results, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, examID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "exam",
		EntityID: strconv.FormatInt(examID, 10),
		Meta:     meta,
	})
}
