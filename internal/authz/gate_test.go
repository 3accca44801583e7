package authz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	_ "github.com/schoolyard-app/schoolyard/testing"
)

type stubStore struct {
	subjects map[int64]authz.Subject
	err      error
	calls    int
}

func (s *stubStore) FindByID(ctx context.Context, id int64) (authz.Subject, error) {
	s.calls++
	if s.err != nil {
		return authz.Subject{}, s.err
	}
	subject, ok := s.subjects[id]
	if !ok {
		return authz.Subject{}, shared.ErrNotFound
	}
	return subject, nil
}

type memoryAuditor struct {
	events []shared.AuditEvent
	err    error
}

func (a *memoryAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

func newGate(t *testing.T, store *stubStore, auditor authz.Auditor) (*authz.Gate, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	gate := authz.NewGate(authz.NewVerifier(store, nil), auditor, nil)
	return gate, sessions
}

// requestAs builds a request whose session carries the given subject ID.
func requestAs(t *testing.T, sessions *shared.SessionManager, subjectID string, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if subjectID != "" {
		sess.SetSubject(subjectID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateNoSessionRedirectsToLogin(t *testing.T) {
	gate, sessions := newGate(t, &stubStore{}, nil)

	req := requestAs(t, sessions, "", "/students")
	res := httptest.NewRecorder()
	_, ok := gate.Authenticate(res, req)

	require.False(t, ok)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/login", res.Header().Get("Location"))
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	// Valid session, subject no longer exists in the account store.
	auditor := &memoryAuditor{}
	gate, sessions := newGate(t, &stubStore{subjects: map[int64]authz.Subject{}}, auditor)

	req := requestAs(t, sessions, "42", "/students")
	res := httptest.NewRecorder()
	_, ok := gate.Authenticate(res, req)

	require.False(t, ok)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/login?error=account_deleted", res.Header().Get("Location"))
	require.Len(t, auditor.events, 1)
	require.Equal(t, "auth.rejected", auditor.events[0].Action)
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		7: {ID: 7, Email: "t@school.test", Role: authz.RoleTeacher, Active: false},
	}}
	gate, sessions := newGate(t, store, nil)

	req := requestAs(t, sessions, "7", "/attendance")
	res := httptest.NewRecorder()
	_, ok := gate.Authenticate(res, req)

	require.False(t, ok)
	require.Equal(t, "/login?error=account_deactivated", res.Header().Get("Location"))
}

func TestAuthenticateUsesStoreRoleNotSessionHint(t *testing.T) {
	// The session was issued while the subject was office staff; the
	// store now reports admin. The principal must carry admin.
	store := &stubStore{subjects: map[int64]authz.Subject{
		3: {ID: 3, Email: "o@school.test", Name: "Odile", Role: authz.RoleAdmin, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	req := requestAs(t, sessions, "3", "/")
	res := httptest.NewRecorder()
	principal, ok := gate.Authenticate(res, req)

	require.True(t, ok)
	require.Equal(t, authz.RoleAdmin, principal.Role)
	require.Equal(t, int64(3), principal.ID)
	require.Equal(t, "Odile", principal.Name)
}

func TestAuthenticateStoreFailureFailsClosed(t *testing.T) {
	store := &stubStore{
		subjects: map[int64]authz.Subject{9: {ID: 9, Role: authz.RoleAdmin, Active: true}},
		err:      errors.New("connection refused"),
	}
	gate, sessions := newGate(t, store, nil)

	req := requestAs(t, sessions, "9", "/admin/users")
	res := httptest.NewRecorder()
	_, ok := gate.Authenticate(res, req)

	require.False(t, ok, "an unreachable store must never grant access")
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/login?error=account_deleted", res.Header().Get("Location"))
}

func TestAuthenticateIdempotentWithinRequest(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		5: {ID: 5, Role: authz.RoleTeacher, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	req := requestAs(t, sessions, "5", "/")
	res := httptest.NewRecorder()
	first, ok := gate.Authenticate(res, req)
	require.True(t, ok)

	// A second gate pass in the same request reuses the context
	// principal rather than deciding differently.
	req = req.WithContext(authz.ContextWithPrincipal(req.Context(), first))
	second, ok := gate.Authenticate(httptest.NewRecorder(), req)
	require.True(t, ok)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.calls)
}

func TestRequireRoleMismatchRedirectsHome(t *testing.T) {
	auditor := &memoryAuditor{}
	store := &stubStore{subjects: map[int64]authz.Subject{
		11: {ID: 11, Role: authz.RoleTeacher, Active: true},
	}}
	gate, sessions := newGate(t, store, auditor)

	var hit bool
	handler := gate.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin)(okHandler(&hit))

	req := requestAs(t, sessions, "11", "/admin/users")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.False(t, hit)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/", res.Header().Get("Location"), "authenticated but unauthorized goes home, not to login")
	require.Len(t, auditor.events, 1)
	require.Equal(t, "authz.denied", auditor.events[0].Action)
}

func TestRequireRoleAllowsAndInjectsPrincipal(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		2: {ID: 2, Email: "a@school.test", Role: authz.RoleAdmin, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	var seen authz.Principal
	handler := gate.RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := authz.PrincipalFromContext(r.Context())
		require.True(t, ok)
		seen = p
	}))

	req := requestAs(t, sessions, "2", "/admin/users")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, int64(2), seen.ID)
	require.Equal(t, authz.RoleAdmin, seen.Role)
}

func TestRoleChangeTakesEffectNextRequest(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		4: {ID: 4, Role: authz.RoleOfficeStaff, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	req := requestAs(t, sessions, "4", "/")
	principal, ok := gate.Authenticate(httptest.NewRecorder(), req)
	require.True(t, ok)
	require.Equal(t, authz.RoleOfficeStaff, principal.Role)

	// Promote in the store; the same session token now yields admin.
	store.subjects[4] = authz.Subject{ID: 4, Role: authz.RoleAdmin, Active: true}
	req = requestAs(t, sessions, "4", "/")
	principal, ok = gate.Authenticate(httptest.NewRecorder(), req)
	require.True(t, ok)
	require.Equal(t, authz.RoleAdmin, principal.Role)
}

func TestRequirePermissionRevenue(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		20: {ID: 20, Role: authz.RoleOfficeStaff, Active: true},
		21: {ID: 21, Role: authz.RoleAdmin, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	var hit bool
	handler := gate.RequirePermission(authz.PermViewRevenue)(okHandler(&hit))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, sessions, "20", "/fees/revenue"))
	require.False(t, hit)
	require.Equal(t, "/", res.Header().Get("Location"))

	handler.ServeHTTP(httptest.NewRecorder(), requestAs(t, sessions, "21", "/fees/revenue"))
	require.True(t, hit)
}

func TestRequireAcademicsAdmitsTeachingRolesOnly(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		30: {ID: 30, Role: authz.RoleTeacher, Active: true},
		31: {ID: 31, Role: authz.RoleOfficeStaff, Active: true},
	}}
	gate, sessions := newGate(t, store, nil)

	var hit bool
	handler := gate.RequireAcademics()(okHandler(&hit))

	handler.ServeHTTP(httptest.NewRecorder(), requestAs(t, sessions, "30", "/attendance"))
	require.True(t, hit)

	hit = false
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, sessions, "31", "/attendance"))
	require.False(t, hit)
	require.Equal(t, "/", res.Header().Get("Location"))
}

func TestAuditFailureDoesNotBlockDecision(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		13: {ID: 13, Role: authz.RoleStudent, Active: true},
	}}
	gate, sessions := newGate(t, store, &memoryAuditor{err: errors.New("sink down")})

	var hit bool
	handler := gate.RequireAdmin()(okHandler(&hit))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, sessions, "13", "/admin/users"))

	// Denial still resolves to the home redirect even though the audit
	// write failed.
	require.False(t, hit)
	require.Equal(t, "/", res.Header().Get("Location"))
}

func TestMalformedSubjectRedirectsToPlainLogin(t *testing.T) {
	gate, sessions := newGate(t, &stubStore{}, nil)

	req := requestAs(t, sessions, "not-a-number", "/")
	res := httptest.NewRecorder()
	_, ok := gate.Authenticate(res, req)

	require.False(t, ok)
	require.Equal(t, "/login", res.Header().Get("Location"))
}

func TestVerifierSingleReadPerCheck(t *testing.T) {
	store := &stubStore{subjects: map[int64]authz.Subject{
		1: {ID: 1, Role: authz.RoleStudent, Active: true},
	}}
	verifier := authz.NewVerifier(store, nil)

	for i := 0; i < 3; i++ {
		subject, live := verifier.Verify(context.Background(), 1)
		require.True(t, live.Exists)
		require.True(t, live.Active)
		require.Equal(t, authz.RoleStudent, live.Role)
		require.Equal(t, int64(1), subject.ID)
	}
	require.Equal(t, 3, store.calls, "no caching between checks")
}

func TestVerifierFailClosed(t *testing.T) {
	verifier := authz.NewVerifier(&stubStore{err: errors.New("timeout")}, nil)
	_, live := verifier.Verify(context.Background(), 99)
	require.False(t, live.Exists)
	require.False(t, live.Active)
	require.Empty(t, string(live.Role))
}
