package view

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/authz"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderLoginPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/login.html", TemplateData{
		Title:     "Sign in",
		CSRFToken: "tok-123",
		Data: map[string]any{
			"Form":   map[string]string{"Email": "office@example.com"},
			"Errors": map[string]string{},
			"Notice": "",
		},
	})
	require.NoError(t, err)
	body := rec.Body.String()
	assert.Contains(t, body, `value="tok-123"`)
	assert.Contains(t, body, "office@example.com")
}

func TestRenderDashboardPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/home.html", TemplateData{
		Title:     "Dashboard",
		CSRFToken: "tok-456",
		Principal: &authz.Principal{ID: 1, Name: "Head Teacher", Role: authz.RoleAdmin},
		Data: map[string]any{
			"StudentCount": 240,
			"StaffCount":   18,
			"GeneratedAt":  time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	body := rec.Body.String()
	assert.Contains(t, body, "Head Teacher")
	assert.Contains(t, body, "240")
}
