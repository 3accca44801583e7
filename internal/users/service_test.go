package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	accounts map[int64]Account
	hashes   map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, accounts: make(map[int64]Account), hashes: make(map[int64]string)}
}

func (r *memoryRepo) List(ctx context.Context, query string, limit, offset int) ([]Account, int, error) {
	var result []Account
	for _, a := range r.accounts {
		result = append(result, a)
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) Create(ctx context.Context, a Account, passwordHash string) (Account, error) {
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return Account{}, shared.ErrDuplicate
		}
	}
	a.ID = r.nextID
	r.nextID++
	r.accounts[a.ID] = a
	r.hashes[a.ID] = passwordHash
	return a, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryRepo) SetRole(ctx context.Context, id int64, role authz.Role) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Role = role
	r.accounts[id] = a
	return nil
}

func (r *memoryRepo) CountByRole(ctx context.Context) (map[authz.Role]int, error) {
	result := make(map[authz.Role]int)
	for _, a := range r.accounts {
		result[a.Role]++
	}
	return result, nil
}

type recordingAuditor struct {
	actions []string
}

func (a *recordingAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	a.actions = append(a.actions, event.Action)
	return nil
}

func TestCreateHashesPasswordAndActivates(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor)

	created, err := svc.Create(context.Background(), 1, Account{
		Email: "clerk@school.test",
		Name:  "Office Clerk",
		Role:  authz.RoleOfficeStaff,
	}, "correct horse battery")
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[created.ID]), []byte("correct horse battery")))
	require.Equal(t, []string{"users.create"}, auditor.actions)
}

func TestCreateRejectsWeakPasswordAndBadRole(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, Account{Email: "a@b.test", Role: authz.RoleAdmin}, "short")
	require.Error(t, err)
	_, err = svc.Create(ctx, 1, Account{Email: "a@b.test", Role: authz.Role("principal")}, "long enough pw")
	require.Error(t, err)
}

func TestSetActiveGuardsSelf(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, Account{Email: "t@school.test", Role: authz.RoleTeacher}, "long enough pw")
	require.NoError(t, err)

	require.Error(t, svc.SetActive(ctx, created.ID, created.ID, false))
	require.NoError(t, svc.SetActive(ctx, 99, created.ID, false))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.NoError(t, svc.SetActive(ctx, created.ID, created.ID, true), "self reactivation is harmless")
}

func TestSetRoleGuardsSelfAndValidates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, Account{Email: "t@school.test", Role: authz.RoleTeacher}, "long enough pw")
	require.NoError(t, err)

	require.Error(t, svc.SetRole(ctx, created.ID, created.ID, authz.RoleAdmin))
	require.Error(t, svc.SetRole(ctx, 99, created.ID, authz.Role("janitor")))
	require.NoError(t, svc.SetRole(ctx, 99, created.ID, authz.RoleAdmin))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, authz.RoleAdmin, got.Role)
}
