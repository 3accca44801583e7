package admissions

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort abstracts inquiry persistence.
type RepositoryPort interface {
	List(ctx context.Context, stage string, limit, offset int) ([]Inquiry, int, error)
	Get(ctx context.Context, id int64) (Inquiry, error)
	Create(ctx context.Context, q Inquiry) (Inquiry, error)
	UpdateStage(ctx context.Context, id int64, from, to Stage) error
	CountByStage(ctx context.Context) (map[Stage]int, error)
}

// ApprovalPort records the decision trail. Satisfied by
// shared.ApprovalRecorder.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Notifier announces pipeline milestones to the applicant. Delivery is
// best effort and never blocks a stage change.
type Notifier interface {
	OfferExtended(ctx context.Context, q Inquiry) error
}

const approvalModule = "admissions"

// Service handles the admissions pipeline.
type Service struct {
	repo      RepositoryPort
	approvals ApprovalPort
	audit     Auditor
	notifier  Notifier
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, approvals ApprovalPort, audit Auditor) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit}
}

// SetNotifier attaches an applicant notifier. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// List returns a page of inquiries, optionally filtered by stage.
func (s *Service) List(ctx context.Context, stage string, page, perPage int) ([]Inquiry, shared.Pagination, error) {
	if stage != "" {
		if _, ok := ParseStage(stage); !ok {
			return nil, shared.Pagination{}, fmt.Errorf("admissions: unknown stage %q", stage)
		}
	}
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.List(ctx, stage, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Get returns one inquiry.
func (s *Service) Get(ctx context.Context, id int64) (Inquiry, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new inquiry at the start of the pipeline.
func (s *Service) Create(ctx context.Context, actorID int64, q Inquiry) (Inquiry, error) {
	q.Reference = uuid.New()
	q.Stage = StageNew
	created, err := s.repo.Create(ctx, q)
	if err != nil {
		return Inquiry{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, approvalModule, created.Reference, actorID, "inquiry registered")
	}
	s.record(ctx, actorID, "admissions.create", created.ID, nil)
	return created, nil
}

// Advance moves an inquiry to the next stage. Illegal transitions are
// rejected before any write.
func (s *Service) Advance(ctx context.Context, actorID, id int64, to Stage, note string) (Inquiry, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Inquiry{}, err
	}
	if !CanTransition(q.Stage, to) {
		return Inquiry{}, fmt.Errorf("admissions: cannot move from %s to %s", q.Stage, to)
	}
	if err := s.repo.UpdateStage(ctx, id, q.Stage, to); err != nil {
		return Inquiry{}, err
	}
	if s.approvals != nil {
		switch to {
		case StageEnrolled:
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: approvalModule, RefID: q.Reference, ActorID: actorID,
				Action: shared.ApprovalApprove, Note: note,
			})
		case StageRejected:
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: approvalModule, RefID: q.Reference, ActorID: actorID,
				Action: shared.ApprovalReject, Note: note,
			})
		}
	}
	s.record(ctx, actorID, "admissions.stage", id, map[string]any{
		"from": string(q.Stage),
		"to":   string(to),
	})
	if to == StageOffered && s.notifier != nil && q.Email != "" {
		_ = s.notifier.OfferExtended(ctx, q)
	}
	q.Stage = to
	return q, nil
}

// Trail returns the decision history for an inquiry.
func (s *Service) Trail(ctx context.Context, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, ref)
}

// PipelineCounts returns inquiry totals per stage for the dashboard.
func (s *Service) PipelineCounts(ctx context.Context) (map[Stage]int, error) {
	return s.repo.CountByStage(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "admission_inquiry",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
