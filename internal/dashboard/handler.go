package dashboard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/schoolyard-app/schoolyard/internal/admissions"
	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/fees"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/staff"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler serves the home dashboard. Students are sent to their portal
// instead; everyone else gets counters for the areas they can open.
type Handler struct {
	logger     *slog.Logger
	students   *students.Service
	staff      *staff.Service
	admissions *admissions.Service
	fees       *fees.Service
	templates  *view.Engine
	csrf       *shared.CSRFManager
	gate       *authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, studentSvc *students.Service, staffSvc *staff.Service, admissionSvc *admissions.Service, feeSvc *fees.Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{
		logger:     logger,
		students:   studentSvc,
		staff:      staffSvc,
		admissions: admissionSvc,
		fees:       feeSvc,
		templates:  templates,
		csrf:       csrf,
		gate:       gate,
	}
}

// MountRoutes registers the home route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAuth)
		r.Get("/", h.home)
	})
}

type homeData struct {
	StudentCount int
	StaffCount   int
	Pipeline     map[admissions.Stage]int
	Outstanding  []fees.AccountRow
	GeneratedAt  time.Time
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, authz.LoginPath, http.StatusSeeOther)
		return
	}
	if principal.Role == authz.RoleStudent {
		http.Redirect(w, r, "/portal", http.StatusSeeOther)
		return
	}

	data := homeData{GeneratedAt: time.Now().UTC()}
	g, ctx := errgroup.WithContext(r.Context())
	if principal.HasPermission(authz.PermManageStudents) {
		g.Go(func() error {
			var err error
			data.StudentCount, err = h.students.Count(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			data.StaffCount, err = h.staff.Count(ctx)
			return err
		})
	}
	if principal.HasPermission(authz.PermManageAdmissions) {
		g.Go(func() error {
			var err error
			data.Pipeline, err = h.admissions.PipelineCounts(ctx)
			return err
		})
	}
	if principal.HasPermission(authz.PermManageFees) {
		g.Go(func() error {
			var err error
			data.Outstanding, err = h.fees.Outstanding(ctx, 0, 5)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard counters", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.templates.RenderPage(w, r, h.csrf, "pages/home.html", "Dashboard", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
