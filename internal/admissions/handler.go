package admissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler manages admissions endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		validate:  validator.New(),
	}
}

// MountRoutes registers admissions routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermManageAdmissions))
		r.Get("/", h.list)
		r.Get("/new", h.form)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Post("/{id}/stage", h.advance)
	})
}

type inquiryForm struct {
	ChildName    string `validate:"required,max=120"`
	GuardianName string `validate:"required,max=120"`
	Phone        string `validate:"required,max=32"`
	Email        string `validate:"omitempty,email,max=254"`
	ClassApplied string `validate:"required,max=40"`
	Notes        string `validate:"max=2000"`
	Errors       map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render admissions", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	stage := strings.TrimSpace(r.URL.Query().Get("stage"))
	items, pagination, err := h.service.List(r.Context(), stage, page, 20)
	if err != nil {
		h.logger.Error("list inquiries", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	counts, err := h.service.PipelineCounts(r.Context())
	if err != nil {
		h.logger.Error("pipeline counts", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admissions_list.html", "Admissions", map[string]any{
		"Inquiries":  items,
		"Stage":      stage,
		"Stages":     Stages(),
		"Counts":     counts,
		"Pagination": pagination,
	})
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admission_form.html", "New Inquiry", inquiryForm{})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := inquiryForm{
		ChildName:    strings.TrimSpace(r.PostFormValue("child_name")),
		GuardianName: strings.TrimSpace(r.PostFormValue("guardian_name")),
		Phone:        strings.TrimSpace(r.PostFormValue("phone")),
		Email:        strings.TrimSpace(r.PostFormValue("email")),
		ClassApplied: strings.TrimSpace(r.PostFormValue("class_applied")),
		Notes:        strings.TrimSpace(r.PostFormValue("notes")),
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
		h.render(w, r, "pages/admission_form.html", "New Inquiry", form)
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	q, err := h.service.Create(r.Context(), principal.ID, Inquiry{
		ChildName:    form.ChildName,
		GuardianName: form.GuardianName,
		Phone:        form.Phone,
		Email:        form.Email,
		ClassApplied: form.ClassApplied,
		Notes:        form.Notes,
	})
	if err != nil {
		h.logger.Error("create inquiry", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Inquiry registered"})
	}
	http.Redirect(w, r, "/admissions/"+strconv.FormatInt(q.ID, 10), http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("get inquiry", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	trail, err := h.service.Trail(r.Context(), q.Reference)
	if err != nil {
		h.logger.Error("inquiry trail", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admission_show.html", q.ChildName, map[string]any{
		"Inquiry": q,
		"Next":    q.Stage.NextStages(),
		"Trail":   trail,
	})
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	to, ok := ParseStage(r.PostFormValue("stage"))
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	_, err = h.service.Advance(r.Context(), principal.ID, id, to, strings.TrimSpace(r.PostFormValue("note")))
	sess := shared.SessionFromContext(r.Context())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "That move is not allowed"})
		}
	default:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Inquiry moved to " + string(to)})
		}
	}
	http.Redirect(w, r, "/admissions/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}
