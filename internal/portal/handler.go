package portal

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolyard-app/schoolyard/internal/attendance"
	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/exams"
	"github.com/schoolyard-app/schoolyard/internal/fees"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler serves the student's own view: attendance, marks and fee
// balance. Everything is keyed off the signed-in account; students
// never pass ids.
type Handler struct {
	logger     *slog.Logger
	students   *students.Service
	attendance *attendance.Service
	exams      *exams.Service
	fees       *fees.Service
	templates  *view.Engine
	csrf       *shared.CSRFManager
	gate       *authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, studentSvc *students.Service, attendanceSvc *attendance.Service, examSvc *exams.Service, feeSvc *fees.Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{
		logger:     logger,
		students:   studentSvc,
		attendance: attendanceSvc,
		exams:      examSvc,
		fees:       feeSvc,
		templates:  templates,
		csrf:       csrf,
		gate:       gate,
	}
}

// MountRoutes registers the portal route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireStudentPortal())
		r.Get("/", h.show)
	})
}

type resultRow struct {
	Exam   exams.Exam
	Result exams.Result
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	student, err := h.students.GetByAccount(r.Context(), principal.ID)
	if errors.Is(err, shared.ErrNotFound) {
		// Account exists but no student record is linked yet.
		h.render(w, r, map[string]any{"Unlinked": true})
		return
	}
	if err != nil {
		h.logger.Error("portal student", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	summary, err := h.attendance.MonthSummary(r.Context(), student.ID, time.Now().UTC())
	if err != nil {
		h.logger.Error("portal attendance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	es, results, err := h.exams.StudentResults(r.Context(), student.ID)
	if err != nil {
		h.logger.Error("portal results", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	rows := make([]resultRow, len(results))
	for i := range results {
		rows[i] = resultRow{Exam: es[i], Result: results[i]}
	}
	account, err := h.fees.Summary(r.Context(), student.ID)
	if err != nil {
		h.logger.Error("portal fees", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.render(w, r, map[string]any{
		"Student":    student,
		"Attendance": summary,
		"Results":    rows,
		"Fees":       account,
		"Balance":    account.BalanceCents(),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, "pages/portal.html", "My Portal", data); err != nil {
		h.logger.Error("render portal", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
