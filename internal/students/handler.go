package students

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// FeeSummary is the slice of a student's fee account the detail page
// shows. The fees module computes it; declaring the shape here keeps
// the dependency one-directional.
type FeeSummary struct {
	ChargedCents int64
	PaidCents    int64
	BalanceCents int64
}

// FeeSummaryFn resolves the fee summary for one student.
type FeeSummaryFn func(ctx context.Context, studentID int64) (FeeSummary, error)

// Handler manages student record endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	templates  *view.Engine
	csrf       *shared.CSRFManager
	gate       *authz.Gate
	validator  *validator.Validate
	feeSummary FeeSummaryFn
}

// NewHandler builds Handler instance. feeSummary may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate, feeSummary FeeSummaryFn) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		templates:  templates,
		csrf:       csrf,
		gate:       gate,
		validator:  validator.New(),
		feeSummary: feeSummary,
	}
}

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermManageStudents))
		r.Get("/", h.list)
		r.Get("/new", h.showForm)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.update)
	})
}

type studentForm struct {
	AdmissionNo   string `validate:"required"`
	FullName      string `validate:"required,min=2"`
	ClassName     string
	GuardianName  string
	GuardianPhone string
	DateOfBirth   string
}

type listPageData struct {
	Students   []Student
	Query      string
	Pagination shared.Pagination
}

type formPageData struct {
	Student Student
	Action  string
	Errors  map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render "+name, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	query := r.URL.Query().Get("q")
	rows, pagination, err := h.service.List(r.Context(), query, page, 20)
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/students_list.html", "Students", listPageData{Students: rows, Query: query, Pagination: pagination})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	student, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("get student", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var summary FeeSummary
	if h.feeSummary != nil {
		if summary, err = h.feeSummary(r.Context(), student.ID); err != nil {
			h.logger.Warn("student fee summary", slog.Any("error", err))
			summary = FeeSummary{}
		}
	}
	h.render(w, r, "pages/student_show.html", student.FullName, map[string]any{
		"Student":    student,
		"FeeSummary": summary,
	})
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/student_form.html", "New student", formPageData{Action: "/students", Errors: map[string]string{}})
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	student, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/student_form.html", "Edit student", formPageData{
		Student: student,
		Action:  "/students/" + chi.URLParam(r, "id") + "/edit",
		Errors:  map[string]string{},
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.save(w, r, id)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := studentForm{
		AdmissionNo:   r.PostFormValue("admission_no"),
		FullName:      r.PostFormValue("full_name"),
		ClassName:     r.PostFormValue("class_name"),
		GuardianName:  r.PostFormValue("guardian_name"),
		GuardianPhone: r.PostFormValue("guardian_phone"),
		DateOfBirth:   r.PostFormValue("date_of_birth"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	student := Student{
		ID:            id,
		AdmissionNo:   form.AdmissionNo,
		FullName:      form.FullName,
		ClassName:     form.ClassName,
		GuardianName:  form.GuardianName,
		GuardianPhone: form.GuardianPhone,
	}
	if form.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", form.DateOfBirth)
		if err != nil {
			errs["DateOfBirth"] = "invalid date"
		} else {
			student.DateOfBirth = dob
		}
	}

	principal, _ := authz.PrincipalFromContext(r.Context())
	if len(errs) == 0 {
		var err error
		if id == 0 {
			_, err = h.service.Create(r.Context(), principal.ID, student)
		} else {
			_, err = h.service.Update(r.Context(), principal.ID, student)
		}
		switch {
		case err == nil:
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Student saved"})
			}
			http.Redirect(w, r, "/students", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrDuplicate):
			errs["AdmissionNo"] = "admission number already in use"
		case errors.Is(err, shared.ErrNotFound):
			http.NotFound(w, r)
			return
		default:
			h.logger.Error("save student", slog.Any("error", err))
			errs["general"] = "Could not save the student record"
		}
	}

	action := "/students"
	if id != 0 {
		action = "/students/" + strconv.FormatInt(id, 10) + "/edit"
	}
	w.WriteHeader(http.StatusBadRequest)
	h.render(w, r, "pages/student_form.html", "Student", formPageData{Student: student, Action: action, Errors: errs})
}
