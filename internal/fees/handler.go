package fees

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/view"
)

// ReceiptData is everything a rendered payment receipt shows.
type ReceiptData struct {
	Transaction Transaction
	StudentName string
	AdmissionNo string
	ClassName   string
	Balance     int64
	IssuedAt    time.Time
}

// ReceiptRenderer produces a PDF receipt for a payment.
type ReceiptRenderer interface {
	FeeReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

// Handler manages fee ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	students  *students.Service
	receipts  ReceiptRenderer
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *authz.Gate
}

// NewHandler builds Handler instance. receipts may be nil when no PDF
// backend is configured; the receipt route then returns 503.
func NewHandler(logger *slog.Logger, service *Service, studentSvc *students.Service, receipts ReceiptRenderer, templates *view.Engine, csrf *shared.CSRFManager, gate *authz.Gate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		students:  studentSvc,
		receipts:  receipts,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
	}
}

// MountRoutes registers fee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermManageFees))
		r.Get("/", h.accounts)
		r.Get("/accounts/{studentID}", h.account)
		r.Post("/accounts/{studentID}/transactions", h.post)
		r.Get("/receipts/{id}", h.receipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(authz.PermViewRevenue))
		r.Get("/revenue", h.revenue)
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.RenderPage(w, r, h.csrf, name, title, data); err != nil {
		h.logger.Error("render fees", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	rows, pagination, err := h.service.Accounts(r.Context(), page, 20)
	if err != nil {
		h.logger.Error("fee accounts", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/fees_list.html", "Fee Accounts", map[string]any{
		"Accounts":   rows,
		"Pagination": pagination,
	})
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	student, err := h.students.Get(r.Context(), studentID)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("fee account student", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	summary, ledger, err := h.service.Account(r.Context(), studentID)
	if err != nil {
		h.logger.Error("fee account", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/fee_account.html", "Fee Account", map[string]any{
		"Student":   student,
		"Summary":   summary,
		"Ledger":    ledger,
		"Reference": uuid.NewString(),
	})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	kind, ok := ParseTxKind(r.PostFormValue("kind"))
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	amount, err := parseAmountCents(r.PostFormValue("amount"))
	if err != nil {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Invalid amount"})
		}
		http.Redirect(w, r, "/fees/accounts/"+strconv.FormatInt(studentID, 10), http.StatusSeeOther)
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	_, err = h.service.Post(r.Context(), principal.ID, Transaction{
		StudentID:   studentID,
		Kind:        kind,
		AmountCents: amount,
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Method:      strings.TrimSpace(r.PostFormValue("method")),
		Reference:   strings.TrimSpace(r.PostFormValue("reference")),
	})
	sess := shared.SessionFromContext(r.Context())
	switch {
	case errors.Is(err, ErrDuplicatePosting):
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "This entry was already recorded"})
		}
	case err != nil:
		h.logger.Error("post fee transaction", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	default:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Entry recorded"})
		}
	}
	http.Redirect(w, r, "/fees/accounts/"+strconv.FormatInt(studentID, 10), http.StatusSeeOther)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	if h.receipts == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	tx, err := h.service.Transaction(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("receipt transaction", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if tx.Kind != TxPayment {
		http.Error(w, "receipts cover payments only", http.StatusBadRequest)
		return
	}
	student, err := h.students.Get(r.Context(), tx.StudentID)
	if err != nil {
		h.logger.Error("receipt student", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	summary, err := h.service.Summary(r.Context(), tx.StudentID)
	if err != nil {
		h.logger.Error("receipt summary", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.receipts.FeeReceipt(r.Context(), ReceiptData{
		Transaction: tx,
		StudentName: student.FullName,
		AdmissionNo: student.AdmissionNo,
		ClassName:   student.ClassName,
		Balance:     summary.BalanceCents(),
		IssuedAt:    time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("render receipt", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="receipt-`+strconv.FormatInt(tx.ID, 10)+`.pdf"`)
	_, _ = w.Write(pdf)
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	rows, err := h.service.Revenue(r.Context(), year)
	if err != nil {
		h.logger.Error("revenue", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var total int64
	for _, row := range rows {
		total += row.Cents
	}
	h.render(w, r, "pages/revenue.html", "Revenue", map[string]any{
		"Year":  year,
		"Rows":  rows,
		"Total": total,
	})
}

// parseAmountCents converts a decimal money string like "150.00" into
// cents without floating point rounding.
func parseAmountCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	whole, frac, found := strings.Cut(raw, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, errors.New("invalid amount")
	}
	cents := units * 100
	if found {
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) != 2 {
			return 0, errors.New("invalid amount")
		}
		rem, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || rem < 0 {
			return 0, errors.New("invalid amount")
		}
		cents += rem
	}
	return cents, nil
}
