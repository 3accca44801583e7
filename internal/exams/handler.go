package exams

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler manages exam and mark entry endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	students  *students.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, studentSvc *students.Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		students:  studentSvc,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		validate:  validator.New(),
	}
}

// MountRoutes registers exam routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAcademics())
		r.Use(h.gate.RequirePermission(authz.PermEnterMarks))
		r.Get("/", h.list)
		r.Get("/new", h.form)
		r.Post("/", h.create)
		r.Get("/{id}/marks", h.showMarks)
		r.Post("/{id}/marks", h.enterMarks)
	})
}

type examForm struct {
	Name      string `validate:"required,max=120"`
	ClassName string `validate:"required,max=40"`
	Subject   string `validate:"required,max=80"`
	MaxScore  int    `validate:"required,gt=0,lte=1000"`
	HeldOn    string `validate:"required,datetime=2006-01-02"`
	Errors    map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render exams", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	className := strings.TrimSpace(r.URL.Query().Get("class_name"))
	items, pagination, err := h.service.List(r.Context(), className, page, 20)
	if err != nil {
		h.logger.Error("list exams", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/exams_list.html", "Exams", map[string]any{
		"Exams":      items,
		"ClassName":  className,
		"Pagination": pagination,
	})
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/exam_form.html", "New Exam", examForm{HeldOn: time.Now().UTC().Format("2006-01-02")})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	maxScore, _ := strconv.Atoi(r.PostFormValue("max_score"))
	form := examForm{
		Name:      strings.TrimSpace(r.PostFormValue("name")),
		ClassName: strings.TrimSpace(r.PostFormValue("class_name")),
		Subject:   strings.TrimSpace(r.PostFormValue("subject")),
		MaxScore:  maxScore,
		HeldOn:    strings.TrimSpace(r.PostFormValue("held_on")),
	}
	if err := h.validate.Struct(form); err != nil {
		form.Errors = make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				form.Errors[fe.Field()] = "invalid value"
			}
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		h.render(w, r, "pages/exam_form.html", "New Exam", form)
		return
	}
	heldOn, _ := time.Parse("2006-01-02", form.HeldOn)
	principal, _ := authz.PrincipalFromContext(r.Context())
	exam, err := h.service.Create(r.Context(), principal.ID, Exam{
		Name:      form.Name,
		ClassName: form.ClassName,
		Subject:   form.Subject,
		MaxScore:  form.MaxScore,
		HeldOn:    heldOn,
	})
	if err != nil {
		h.logger.Error("create exam", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Exam created"})
	}
	http.Redirect(w, r, "/exams/"+strconv.FormatInt(exam.ID, 10)+"/marks", http.StatusSeeOther)
}

type markRow struct {
	Student students.Student
	Score   int
	Entered bool
	Grade   string
}

func (h *Handler) showMarks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	exam, err := h.service.Get(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("get exam", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	roster, err := h.students.ListByClass(r.Context(), exam.ClassName)
	if err != nil {
		h.logger.Error("exam roster", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	marks, err := h.service.Marks(r.Context(), exam.ID)
	if err != nil {
		h.logger.Error("exam marks", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	rows := make([]markRow, 0, len(roster))
	for _, s := range roster {
		row := markRow{Student: s}
		if m, ok := marks[s.ID]; ok {
			row.Score = m.Score
			row.Entered = true
			row.Grade = ResultOf(exam, m).Grade
		}
		rows = append(rows, row)
	}
	h.render(w, r, "pages/exam_marks.html", exam.Name, map[string]any{
		"Exam": exam,
		"Rows": rows,
	})
}

func (h *Handler) enterMarks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	scores := make(map[int64]int)
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "score_") || len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			continue
		}
		studentID, err := strconv.ParseInt(strings.TrimPrefix(key, "score_"), 10, 64)
		if err != nil {
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		scores[studentID] = score
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.EnterMarks(r.Context(), principal.ID, id, scores); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("enter marks", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Marks saved"})
	}
	http.Redirect(w, r, "/exams/"+strconv.FormatInt(id, 10)+"/marks", http.StatusSeeOther)
}
