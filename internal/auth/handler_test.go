package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
	_ "github.com/schoolyard-app/schoolyard/testing"
)

type recordingAuditor struct {
	events []shared.AuditEvent
}

func (a *recordingAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	a.events = append(a.events, event)
	return nil
}

func newTestHandler(t *testing.T, repo *memoryRepo) (*Handler, *shared.SessionManager, *recordingAuditor) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	auditor := &recordingAuditor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo), templates, sessions, csrf, auditor)
	return h, sessions, auditor
}

func sessionRequest(t *testing.T, sessions *shared.SessionManager, method, target string, form url.Values) (*http.Request, *shared.Session) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestShowLoginRendersForm(t *testing.T) {
	h, sessions, _ := newTestHandler(t, newMemoryRepo())

	req, _ := sessionRequest(t, sessions, http.MethodGet, "/login", nil)
	res := httptest.NewRecorder()
	h.showLogin(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `name="csrf_token"`)
	require.Contains(t, res.Body.String(), "Sign in")
}

func TestHandleLoginSuccess(t *testing.T) {
	repo := newMemoryRepo()
	account := seedAccount(t, repo, "office@example.com", "s3cret-pass", true)
	h, sessions, auditor := newTestHandler(t, repo)

	req, sess := sessionRequest(t, sessions, http.MethodPost, "/login", url.Values{
		"email":    {"office@example.com"},
		"password": {"s3cret-pass"},
	})
	sess.ID = "sess-login-1"
	res := httptest.NewRecorder()
	h.handleLogin(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, authz.HomePath, res.Header().Get("Location"))
	require.Equal(t, account.ID, repo.sessions[sess.ID], "session row must be registered")
	require.Len(t, auditor.events, 1)
	require.Equal(t, "auth.login", auditor.events[0].Action)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "office@example.com", "s3cret-pass", true)
	h, sessions, auditor := newTestHandler(t, repo)

	req, _ := sessionRequest(t, sessions, http.MethodPost, "/login", url.Values{
		"email":    {"office@example.com"},
		"password": {"wrong-password"},
	})
	res := httptest.NewRecorder()
	h.handleLogin(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Invalid email or password")
	require.Empty(t, auditor.events)
}

func TestHandleLogoutDropsSession(t *testing.T) {
	repo := newMemoryRepo()
	h, sessions, _ := newTestHandler(t, repo)

	req, sess := sessionRequest(t, sessions, http.MethodPost, "/logout", nil)
	sess.ID = "sess-logout-1"
	repo.sessions[sess.ID] = 3
	res := httptest.NewRecorder()
	h.handleLogout(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, authz.LoginPath, res.Header().Get("Location"))
	require.NotContains(t, repo.sessions, sess.ID)
}
