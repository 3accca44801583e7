package staff

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// Handler manages staff record endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, gate: gate, validator: validator.New()}
}

// MountRoutes registers staff routes. Viewing is open to the
// operations area; mutation stays with staff managers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireOperations())
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermManageStaff))
		r.Get("/new", h.showForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.update)
	})
}

type memberForm struct {
	FullName string `validate:"required,min=2"`
	Email    string `validate:"omitempty,email"`
	Subject  string
	Phone    string
	IsActive bool
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render "+name, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	rows, pagination, err := h.service.List(r.Context(), page, 20)
	if err != nil {
		h.logger.Error("list staff", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/staff_list.html", "Staff", map[string]any{"Staff": rows, "Pagination": pagination})
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/staff_form.html", "New staff member", map[string]any{
		"Member": Member{IsActive: true},
		"Action": "/staff",
		"Errors": map[string]string{},
	})
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	member, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/staff_form.html", "Edit staff member", map[string]any{
		"Member": member,
		"Action": "/staff/" + chi.URLParam(r, "id") + "/edit",
		"Errors": map[string]string{},
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
	form := memberForm{
		FullName: r.PostFormValue("full_name"),
		Subject:  r.PostFormValue("subject"),
		Phone:    r.PostFormValue("phone"),
		Email:    r.PostFormValue("email"),
		IsActive: r.PostFormValue("is_active") != "",
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	member := Member{
		ID:       id,
		FullName: form.FullName,
		Subject:  form.Subject,
		Phone:    form.Phone,
		Email:    form.Email,
		IsActive: form.IsActive,
	}
	if len(errs) == 0 {
		principal, _ := authz.PrincipalFromContext(r.Context())
		_, err := h.service.Save(r.Context(), principal.ID, member)
		switch {
		case err == nil:
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Staff member saved"})
			}
			http.Redirect(w, r, "/staff", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrNotFound):
			http.NotFound(w, r)
			return
		default:
			h.logger.Error("save staff", slog.Any("error", err))
			errs["general"] = "Could not save the staff record"
		}
	}
	action := "/staff"
	if id != 0 {
		action = "/staff/" + strconv.FormatInt(id, 10) + "/edit"
	}
	w.WriteHeader(http.StatusBadRequest)
	h.render(w, r, "pages/staff_form.html", "Staff member", map[string]any{"Member": member, "Action": action, "Errors": errs})
}
