package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/schoolyard-app/schoolyard/internal/admissions"
	"github.com/schoolyard-app/schoolyard/internal/attendance"
	audithttp "github.com/schoolyard-app/schoolyard/internal/audit/http"
	"github.com/schoolyard-app/schoolyard/internal/auth"
	"github.com/schoolyard-app/schoolyard/internal/dashboard"
	"github.com/schoolyard-app/schoolyard/internal/exams"
	"github.com/schoolyard-app/schoolyard/internal/fees"
	"github.com/schoolyard-app/schoolyard/internal/observability"
	"github.com/schoolyard-app/schoolyard/internal/portal"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/staff"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/uploads"
	"github.com/schoolyard-app/schoolyard/internal/users"
	"github.com/schoolyard-app/schoolyard/jobs"
	"github.com/schoolyard-app/schoolyard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler       *auth.Handler
	DashboardHandler  *dashboard.Handler
	StudentsHandler   *students.Handler
	StaffHandler      *staff.Handler
	AttendanceHandler *attendance.Handler
	ExamsHandler      *exams.Handler
	FeesHandler       *fees.Handler
	AdmissionsHandler *admissions.Handler
	UploadsHandler    *uploads.Handler
	PortalHandler     *portal.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audithttp.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi router with every page mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	params.DashboardHandler.MountRoutes(r)
	r.Route("/students", params.StudentsHandler.MountRoutes)
	r.Route("/staff", params.StaffHandler.MountRoutes)
	r.Route("/attendance", params.AttendanceHandler.MountRoutes)
	r.Route("/exams", params.ExamsHandler.MountRoutes)
	r.Route("/fees", params.FeesHandler.MountRoutes)
	r.Route("/admissions", params.AdmissionsHandler.MountRoutes)
	r.Route("/uploads", params.UploadsHandler.MountRoutes)
	r.Route("/portal", params.PortalHandler.MountRoutes)

	r.Route("/admin", func(r chi.Router) {
		r.Route("/users", params.UsersHandler.MountRoutes)
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
