package attendance

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler manages attendance endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	students  *students.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, studentSvc *students.Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, students: studentSvc, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers attendance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAcademics())
		r.Use(h.gate.RequirePermission(authz.PermRecordAttendance))
		r.Get("/", h.showDay)
		r.Post("/", h.markDay)
	})
}

type dayRow struct {
	Student students.Student
	Status  Status
}

type dayPageData struct {
	ClassName string
	Date      time.Time
	Students  []dayRow
	Statuses  []Status
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data dayPageData) {
	if err := h.templates.RenderPage(w, r, h.csrf, "pages/attendance.html", "Attendance", data); err != nil {
		h.logger.Error("render attendance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func parseDay(raw string) time.Time {
	if raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			return d
		}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (h *Handler) showDay(w http.ResponseWriter, r *http.Request) {
	className := strings.TrimSpace(r.URL.Query().Get("class_name"))
	date := parseDay(r.URL.Query().Get("date"))

	data := dayPageData{ClassName: className, Date: date, Statuses: Statuses()}
	if className != "" {
		roster, err := h.students.ListByClass(r.Context(), className)
		if err != nil {
			h.logger.Error("attendance roster", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ids := make([]int64, len(roster))
		for i, s := range roster {
			ids[i] = s.ID
		}
		existing, err := h.service.Existing(r.Context(), ids, date)
		if err != nil {
			h.logger.Error("attendance existing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		for _, s := range roster {
			status := StatusPresent
			if e, ok := existing[s.ID]; ok {
				status = e.Status
			}
			data.Students = append(data.Students, dayRow{Student: s, Status: status})
		}
	}
	h.render(w, r, data)
}

func (h *Handler) markDay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	className := strings.TrimSpace(r.PostFormValue("class_name"))
	date := parseDay(r.PostFormValue("date"))

	marks := make(map[int64]Status)
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "status_") || len(values) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, "status_"), 10, 64)
		if err != nil {
			continue
		}
		status, ok := ParseStatus(values[0])
		if !ok {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		marks[id] = status
	}

	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.MarkDay(r.Context(), principal.ID, date, marks); err != nil {
		h.logger.Error("mark attendance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Attendance saved"})
	}
	query := url.Values{"class_name": {className}, "date": {date.Format("2006-01-02")}}
	http.Redirect(w, r, "/attendance?"+query.Encode(), http.StatusSeeOther)
}
