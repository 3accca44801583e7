package fees

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	Append(ctx context.Context, tx Transaction) (Transaction, error)
	ListForStudent(ctx context.Context, studentID int64) ([]Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	Summary(ctx context.Context, studentID int64) (AccountSummary, error)
	AccountRows(ctx context.Context, limit, offset int) ([]AccountRow, int, error)
	Outstanding(ctx context.Context, minBalanceCents int64, limit int) ([]AccountRow, error)
	RevenueByMonth(ctx context.Context, from, to time.Time) ([]RevenueRow, error)
}

// IdempotencyPort reserves a key once, rejecting replays with
// shared.ErrIdempotencyConflict. Satisfied by shared.IdempotencyStore.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// ErrDuplicatePosting indicates a replayed ledger posting.
var ErrDuplicatePosting = errors.New("fees: posting already recorded")

const idempotencyModule = "fees"

// Service handles the fee ledger.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	audit       Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, idempotency IdempotencyPort, audit Auditor) *Service {
	return &Service{repo: repo, idempotency: idempotency, audit: audit}
}

// Post appends one transaction to a student's ledger. The reference is
// used as the idempotency key so a resubmitted form cannot double-post.
func (s *Service) Post(ctx context.Context, actorID int64, tx Transaction) (Transaction, error) {
	if _, ok := ParseTxKind(string(tx.Kind)); !ok {
		return Transaction{}, fmt.Errorf("fees: unknown transaction kind %q", tx.Kind)
	}
	if tx.AmountCents <= 0 {
		return Transaction{}, fmt.Errorf("fees: amount must be positive")
	}
	if tx.Reference == "" {
		return Transaction{}, fmt.Errorf("fees: reference required")
	}
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, tx.Reference, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Transaction{}, ErrDuplicatePosting
			}
			return Transaction{}, err
		}
	}
	tx.RecordedBy = actorID
	posted, err := s.repo.Append(ctx, tx)
	if err != nil {
		if s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, tx.Reference)
		}
		return Transaction{}, err
	}
	if s.audit != nil {
		_ = s.audit.Append(ctx, shared.AuditEvent{
			ActorID:  actorID,
			Action:   "fees." + string(posted.Kind),
			Entity:   "fee_transaction",
			EntityID: strconv.FormatInt(posted.ID, 10),
			Meta: map[string]any{
				"student_id": strconv.FormatInt(posted.StudentID, 10),
				"amount":     strconv.FormatInt(posted.AmountCents, 10),
			},
		})
	}
	return posted, nil
}

// Account returns a student's summary and full ledger.
func (s *Service) Account(ctx context.Context, studentID int64) (AccountSummary, []Transaction, error) {
	summary, err := s.repo.Summary(ctx, studentID)
	if err != nil {
		return AccountSummary{}, nil, err
	}
	ledger, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return AccountSummary{}, nil, err
	}
	return summary, ledger, nil
}

// Summary returns the computed account state for one student.
func (s *Service) Summary(ctx context.Context, studentID int64) (AccountSummary, error) {
	return s.repo.Summary(ctx, studentID)
}

// Transaction returns one ledger entry.
func (s *Service) Transaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// Accounts returns a page of the balances overview.
func (s *Service) Accounts(ctx context.Context, page, perPage int) ([]AccountRow, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.AccountRows(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Outstanding lists accounts owing more than the threshold.
func (s *Service) Outstanding(ctx context.Context, minBalanceCents int64, limit int) ([]AccountRow, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Outstanding(ctx, minBalanceCents, limit)
}

// Revenue returns monthly collected payments for one calendar year.
func (s *Service) Revenue(ctx context.Context, year int) ([]RevenueRow, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.repo.RevenueByMonth(ctx, from, from.AddDate(1, 0, 0))
}
