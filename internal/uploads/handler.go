package uploads

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/platform/httpx"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

const recentLimit = 20

// Handler serves the upload workspace page and issues signed URLs. The
// sign endpoint answers both the workspace form and JSON calls from the
// attachment widgets on other pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers upload routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermSignUploads))
		r.Get("/", h.page)
		r.Post("/sign", h.sign)
	})
}

type signRequest struct {
	Entity      string `json:"entity"`
	EntityID    int64  `json:"entity_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type signResponse struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if err := h.templates.RenderPage(w, r, h.csrf, "pages/uploads.html", "File Uploads", data); err != nil {
		h.logger.Error("render uploads", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) pageData(r *http.Request) map[string]any {
	recent, err := h.service.Recent(r.Context(), recentLimit)
	if err != nil {
		h.logger.Error("recent uploads", slog.Any("error", err))
	}
	return map[string]any{
		"Entities": Entities(),
		"Recent":   recent,
	}
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, h.pageData(r))
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.signJSON(w, r)
		return
	}
	h.signForm(w, r)
}

func (h *Handler) signJSON(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request body must be valid JSON")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	signed, err := h.service.Issue(r.Context(), principal.ID, strings.TrimSpace(req.Entity), req.EntityID, req.FileName, req.ContentType)
	if err != nil {
		h.logger.Warn("sign upload", slog.Any("error", err), slog.String("actor", strconv.FormatInt(principal.ID, 10)))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, signResponse{
		URL:       signed.URL,
		ObjectKey: signed.Upload.ObjectKey,
		ExpiresAt: time.Now().UTC().Add(URLExpiry),
	})
}

func (h *Handler) signForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	entityID, err := strconv.ParseInt(r.PostFormValue("entity_id"), 10, 64)
	if err != nil {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Entity ID must be a number"})
		}
		http.Redirect(w, r, "/uploads", http.StatusSeeOther)
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	signed, err := h.service.Issue(r.Context(), principal.ID,
		strings.TrimSpace(r.PostFormValue("entity")), entityID,
		strings.TrimSpace(r.PostFormValue("file_name")),
		strings.TrimSpace(r.PostFormValue("content_type")))
	if err != nil {
		h.logger.Warn("sign upload", slog.Any("error", err), slog.String("actor", strconv.FormatInt(principal.ID, 10)))
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: err.Error()})
		}
		http.Redirect(w, r, "/uploads", http.StatusSeeOther)
		return
	}
	data := h.pageData(r)
	data["SignedURL"] = signed.URL
	data["ExpiresIn"] = URLExpiry.String()
	h.render(w, r, data)
}
