package dashboard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
	_ "github.com/schoolyard-app/schoolyard/testing"
)

type stubAccounts struct {
	subjects map[int64]authz.Subject
}

func (s *stubAccounts) FindByID(ctx context.Context, id int64) (authz.Subject, error) {
	subject, ok := s.subjects[id]
	if !ok {
		return authz.Subject{}, shared.ErrNotFound
	}
	return subject, nil
}

func newTestRouter(t *testing.T, store *stubAccounts) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gate := authz.NewGate(authz.NewVerifier(store, nil), nil, nil)
	handler := NewHandler(logger, nil, nil, nil, nil, templates, csrf, gate)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, sessions
}

func homeRequest(t *testing.T, sessions *shared.SessionManager, subjectID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if subjectID != "" {
		sess.SetSubject(subjectID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestHomeRequiresLogin(t *testing.T) {
	router, sessions := newTestRouter(t, &stubAccounts{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, homeRequest(t, sessions, ""))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, authz.LoginPath, res.Header().Get("Location"))
}

func TestHomeRedirectsStudentToPortal(t *testing.T) {
	store := &stubAccounts{subjects: map[int64]authz.Subject{
		5: {ID: 5, Email: "s@school.test", Role: authz.RoleStudent, Active: true},
	}}
	router, sessions := newTestRouter(t, store)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, homeRequest(t, sessions, "5"))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/portal", res.Header().Get("Location"))
}

func TestHomeRedirectsDeactivatedAccountToLogin(t *testing.T) {
	store := &stubAccounts{subjects: map[int64]authz.Subject{
		6: {ID: 6, Email: "x@school.test", Role: authz.RoleAdmin, Active: false},
	}}
	router, sessions := newTestRouter(t, store)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, homeRequest(t, sessions, "6"))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/login?error=account_deactivated", res.Header().Get("Location"))
}
