package admissions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	inquiries map[int64]Inquiry
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, inquiries: make(map[int64]Inquiry)}
}

func (r *memoryRepo) List(ctx context.Context, stage string, limit, offset int) ([]Inquiry, int, error) {
	var result []Inquiry
	for _, q := range r.inquiries {
		if stage == "" || string(q.Stage) == stage {
			result = append(result, q)
		}
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Inquiry, error) {
	q, ok := r.inquiries[id]
	if !ok {
		return Inquiry{}, shared.ErrNotFound
	}
	return q, nil
}

func (r *memoryRepo) Create(ctx context.Context, q Inquiry) (Inquiry, error) {
	q.ID = r.nextID
	r.nextID++
	r.inquiries[q.ID] = q
	return q, nil
}

func (r *memoryRepo) UpdateStage(ctx context.Context, id int64, from, to Stage) error {
	q, ok := r.inquiries[id]
	if !ok || q.Stage != from {
		return shared.ErrNotFound
	}
	q.Stage = to
	r.inquiries[id] = q
	return nil
}

func (r *memoryRepo) CountByStage(ctx context.Context) (map[Stage]int, error) {
	result := make(map[Stage]int)
	for _, q := range r.inquiries {
		result[q.Stage]++
	}
	return result, nil
}

type memoryApprovals struct {
	logs []shared.ApprovalLog
}

func (a *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryApprovals) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var result []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			result = append(result, l)
		}
	}
	return result, nil
}

func (a *memoryApprovals) EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref && l.Action == shared.ApprovalSubmit {
			return nil
		}
	}
	a.logs = append(a.logs, shared.ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: shared.ApprovalSubmit, Note: note})
	return nil
}

func newInquiry(t *testing.T, svc *Service) Inquiry {
	t.Helper()
	q, err := svc.Create(context.Background(), 1, Inquiry{
		ChildName:    "Amina Yusuf",
		GuardianName: "Halima Yusuf",
		Phone:        "0700000001",
		ClassApplied: "5B",
	})
	require.NoError(t, err)
	return q
}

func TestCreateStartsAtNewWithReference(t *testing.T) {
	approvals := &memoryApprovals{}
	svc := NewService(newMemoryRepo(), approvals, nil)

	q := newInquiry(t, svc)
	require.Equal(t, StageNew, q.Stage)
	require.NotEqual(t, uuid.Nil, q.Reference)
	require.Len(t, approvals.logs, 1)
	require.Equal(t, shared.ApprovalSubmit, approvals.logs[0].Action)
}

func TestAdvanceWalksThePipeline(t *testing.T) {
	approvals := &memoryApprovals{}
	svc := NewService(newMemoryRepo(), approvals, nil)
	ctx := context.Background()
	q := newInquiry(t, svc)

	for _, next := range []Stage{StageContacted, StageInterview, StageOffered, StageEnrolled} {
		updated, err := svc.Advance(ctx, 2, q.ID, next, "")
		require.NoError(t, err)
		require.Equal(t, next, updated.Stage)
	}

	trail, err := svc.Trail(ctx, q.Reference)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, shared.ApprovalApprove, trail[1].Action)
	require.Equal(t, int64(2), trail[1].ActorID)
}

func TestAdvanceRejectsSkippedStages(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	q := newInquiry(t, svc)

	_, err := svc.Advance(ctx, 1, q.ID, StageEnrolled, "")
	require.Error(t, err)
	_, err = svc.Advance(ctx, 1, q.ID, StageOffered, "")
	require.Error(t, err)

	current, err := svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, StageNew, current.Stage)
}

func TestRejectionAllowedFromAnyActiveStage(t *testing.T) {
	approvals := &memoryApprovals{}
	svc := NewService(newMemoryRepo(), approvals, nil)
	ctx := context.Background()
	q := newInquiry(t, svc)

	_, err := svc.Advance(ctx, 1, q.ID, StageContacted, "")
	require.NoError(t, err)
	rejected, err := svc.Advance(ctx, 1, q.ID, StageRejected, "no seats in 5B")
	require.NoError(t, err)
	require.Equal(t, StageRejected, rejected.Stage)

	_, err = svc.Advance(ctx, 1, q.ID, StageContacted, "")
	require.Error(t, err, "terminal stages must not transition")

	trail, err := svc.Trail(ctx, q.Reference)
	require.NoError(t, err)
	require.Equal(t, shared.ApprovalReject, trail[len(trail)-1].Action)
	require.Equal(t, "no seats in 5B", trail[len(trail)-1].Note)
}

func TestListValidatesStageFilter(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, _, err := svc.List(context.Background(), "waitlisted", 1, 20)
	require.Error(t, err)
}
