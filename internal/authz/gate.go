package authz

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// Redirect targets and reason codes. The login page matches on these
// exact values to render a tailored message, so they are part of the
// contract with the client.
const (
	LoginPath = "/login"
	HomePath  = "/"

	ReasonParam              = "error"
	ReasonAccountDeleted     = "account_deleted"
	ReasonAccountDeactivated = "account_deactivated"
)

// Principal is the authenticated identity handed to business logic. It
// is rebuilt from the account store on every request; in particular its
// Role is the store's current value, never the session's stale hint.
type Principal struct {
	ID    int64
	Email string
	Name  string
	Role  Role
}

// HasPermission reports whether the principal's role grants perm.
func (p Principal) HasPermission(perm Permission) bool {
	return HasPermission(p.Role, perm)
}

// Auditor is the sink denied and rejected requests are reported to.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// Gate is the authorization entry point every privileged request passes
// through: decode session, re-verify liveness, decide. Every failure
// resolves to a redirect; no error detail reaches the client.
type Gate struct {
	verifier *Verifier
	audit    Auditor
	logger   *slog.Logger
	denied   func(reason string)
}

// NewGate constructs a Gate. audit may be nil; a missing or failing
// audit sink never changes an authorization decision.
func NewGate(verifier *Verifier, audit Auditor, logger *slog.Logger) *Gate {
	return &Gate{verifier: verifier, audit: audit, logger: logger}
}

// SetDenialCounter attaches a counter invoked once per denied request.
// Optional; counting never changes the decision.
func (g *Gate) SetDenialCounter(fn func(reason string)) {
	g.denied = fn
}

func (g *Gate) countDenied(reason string) {
	if g.denied != nil {
		g.denied(reason)
	}
}

// Authenticate resolves the current request to a Principal or writes a
// login redirect. The bool reports whether the caller may proceed.
func (g *Gate) Authenticate(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p, true
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		g.redirectLogin(w, r, "")
		return Principal{}, false
	}
	raw := strings.TrimSpace(sess.Subject())
	if raw == "" {
		g.redirectLogin(w, r, "")
		return Principal{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("session carries malformed subject id", slog.String("value", raw))
		}
		g.redirectLogin(w, r, "")
		return Principal{}, false
	}

	subject, live := g.verifier.Verify(r.Context(), id)
	if !live.Exists {
		g.record(r.Context(), id, "auth.rejected", map[string]any{"reason": ReasonAccountDeleted})
		g.countDenied(ReasonAccountDeleted)
		g.redirectLogin(w, r, ReasonAccountDeleted)
		return Principal{}, false
	}
	if !live.Active {
		g.record(r.Context(), id, "auth.rejected", map[string]any{"reason": ReasonAccountDeactivated})
		g.countDenied(ReasonAccountDeactivated)
		g.redirectLogin(w, r, ReasonAccountDeactivated)
		return Principal{}, false
	}

	return Principal{ID: subject.ID, Email: subject.Email, Name: subject.Name, Role: live.Role}, true
}

// RequireAuth ensures the request carries a live authenticated subject
// and stores the Principal in the request context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := g.Authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRole authenticates and then checks membership in roles. An
// authenticated subject with the wrong role lands on the home page, not
// the login page.
func (g *Gate) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := g.Authenticate(w, r)
			if !ok {
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				g.record(r.Context(), principal.ID, "authz.denied", map[string]any{
					"role": string(principal.Role),
					"path": r.URL.Path,
				})
				g.countDenied("role_mismatch")
				http.Redirect(w, r, HomePath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission authenticates and then checks the static matrix for
// at least one of perms.
func (g *Gate) RequirePermission(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := g.Authenticate(w, r)
			if !ok {
				return
			}
			if !HasAnyPermission(principal.Role, perms...) {
				g.record(r.Context(), principal.ID, "authz.denied", map[string]any{
					"role": string(principal.Role),
					"path": r.URL.Path,
				})
				g.countDenied("permission_missing")
				http.Redirect(w, r, HomePath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireOperations gates the records/fees/admissions area.
func (g *Gate) RequireOperations() func(http.Handler) http.Handler {
	return g.RequireRole(RoleSuperAdmin, RoleAdmin, RoleOfficeStaff)
}

// RequireAcademics gates the attendance/exams area.
func (g *Gate) RequireAcademics() func(http.Handler) http.Handler {
	return g.RequireRole(RoleSuperAdmin, RoleAdmin, RoleTeacher)
}

// RequireAdmin gates user management and the audit timeline.
func (g *Gate) RequireAdmin() func(http.Handler) http.Handler {
	return g.RequireRole(RoleSuperAdmin, RoleAdmin)
}

// RequireSuperAdmin gates platform internals.
func (g *Gate) RequireSuperAdmin() func(http.Handler) http.Handler {
	return g.RequireRole(RoleSuperAdmin)
}

// RequireStudentPortal gates the student's own portal.
func (g *Gate) RequireStudentPortal() func(http.Handler) http.Handler {
	return g.RequireRole(RoleStudent)
}

func (g *Gate) redirectLogin(w http.ResponseWriter, r *http.Request, reason string) {
	target := LoginPath
	if reason != "" {
		target += "?" + ReasonParam + "=" + url.QueryEscape(reason)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (g *Gate) record(ctx context.Context, actorID int64, action string, meta map[string]any) {
	if g.audit == nil {
		return
	}
	event := shared.AuditEvent{ActorID: actorID, Action: action, Entity: "auth", EntityID: strconv.FormatInt(actorID, 10), Meta: meta}
	if err := g.audit.Append(context.WithoutCancel(ctx), event); err != nil && g.logger != nil {
		g.logger.Warn("audit append failed", slog.String("action", action), slog.Any("error", err))
	}
}
