package users

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

// Handler manages the admin account pages.
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

// MountRoutes registers account management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermManageUsers))
		r.Get("/", h.list)
		r.Get("/new", h.form)
		r.Post("/", h.create)
		r.Post("/{id}/active", h.setActive)
		r.Post("/{id}/role", h.setRole)
	})
}

type accountForm struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,max=120"`
	Role     string `validate:"required"`
	Password string `validate:"required,min=8,max=72"`
	Errors   map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, pagination, err := h.service.List(r.Context(), query, page, 20)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users_list.html", "Accounts", map[string]any{
		"Accounts":   items,
		"Query":      query,
		"Roles":      authz.Roles(),
		"Pagination": pagination,
	})
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/user_form.html", "New Account", map[string]any{
		"Form":  accountForm{},
		"Roles": authz.Roles(),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := accountForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Role:     strings.TrimSpace(r.PostFormValue("role")),
		Password: r.PostFormValue("password"),
	}
	role, roleOK := authz.ParseRole(form.Role)
	if err := h.validate.Struct(form); err != nil || !roleOK {
		form.Errors = map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				form.Errors[fe.Field()] = "invalid value"
			}
		}
		if !roleOK {
			form.Errors["Role"] = "invalid value"
		}
		form.Password = ""
		w.WriteHeader(http.StatusUnprocessableEntity)
		h.render(w, r, "pages/user_form.html", "New Account", map[string]any{
			"Form":  form,
			"Roles": authz.Roles(),
		})
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	_, err := h.service.Create(r.Context(), principal.ID, Account{
		Email: form.Email,
		Name:  form.Name,
		Role:  role,
	}, form.Password)
	if errors.Is(err, shared.ErrDuplicate) {
		form.Errors = map[string]string{"Email": "already registered"}
		form.Password = ""
		w.WriteHeader(http.StatusUnprocessableEntity)
		h.render(w, r, "pages/user_form.html", "New Account", map[string]any{
			"Form":  form,
			"Roles": authz.Roles(),
		})
		return
	}
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created"})
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	active := r.PostFormValue("active") == "true"
	principal, _ := authz.PrincipalFromContext(r.Context())
	err = h.service.SetActive(r.Context(), principal.ID, id, active)
	h.finishMutation(w, r, err, "Account updated")
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	role, ok := authz.ParseRole(r.PostFormValue("role"))
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	err = h.service.SetRole(r.Context(), principal.ID, id, role)
	h.finishMutation(w, r, err, "Role updated")
}

func (h *Handler) finishMutation(w http.ResponseWriter, r *http.Request, err error, success string) {
	sess := shared.SessionFromContext(r.Context())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: err.Error()})
		}
	default:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: success})
		}
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}
