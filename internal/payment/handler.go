package payment

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/money"
	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
	"github.com/odyssey-erp/invoicer/internal/shared"
	"github.com/odyssey-erp/invoicer/internal/view"
)

const notFoundMessage = "Invoice not found. Please check the link."

// Handler serves the public payment page.
type Handler struct {
	logger    *slog.Logger
	invoices  *invoice.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler constructs the payment page handler.
func NewHandler(logger *slog.Logger, invoices *invoice.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, invoices: invoices, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers the payment routes under /pay.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{invoiceNumber}", h.show)
	r.Post("/{invoiceNumber}/confirm", h.confirm)
}

type pageView struct {
	Number        string
	ClientName    string
	ClientEmail   string
	Status        string
	Badge         string
	VATIncluded   bool
	Total         string
	Reference     string
	Instructions  string
	Options       string
	Paid          bool
	ConfirmAction string
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "invoiceNumber")
	rec, err := h.invoices.Get(r.Context(), number)
	if err != nil {
		h.renderLookupError(w, r, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
	}

	company := h.invoices.Settings()
	status := rec.Status
	if status == "" {
		status = invoice.StatusDue
	}
	data := view.TemplateData{
		Title:       "Pay Invoice " + rec.InvoiceNumber,
		CSRFToken:   token,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data: pageView{
			Number:        rec.InvoiceNumber,
			ClientName:    rec.ClientName,
			ClientEmail:   rec.ClientEmail,
			Status:        string(status),
			Badge:         status.Badge(),
			VATIncluded:   rec.VATIncluded(company),
			Total:         money.WithSymbol(company.Currency, rec.Totals(company).Total),
			Reference:     rec.PaymentReferenceOr(),
			Instructions:  rec.PaymentInstructionsOr(company),
			Options:       rec.PaymentOptionsOr(company),
			Paid:          status == invoice.StatusPaid,
			ConfirmAction: Path(rec.InvoiceNumber) + "/confirm",
		},
	}
	if err := h.templates.Render(w, "pages/payment.html", data); err != nil {
		h.logger.Error("render payment page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "invoiceNumber")
	if _, err := h.invoices.RecordPayment(r.Context(), number, h.now()); err != nil {
		h.renderLookupError(w, r, err)
		return
	}
	shared.Flash(r.Context(), "success", "Payment Confirmed")
	http.Redirect(w, r, Path(number), http.StatusSeeOther)
}

func (h *Handler) renderLookupError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	data := view.TemplateData{Title: "Something went wrong", Data: "The invoice could not be loaded. Please try again."}
	page := "pages/error.html"
	if errors.Is(err, httpx.ErrNotFound) {
		status = http.StatusNotFound
		page = "pages/not_found.html"
		data = view.TemplateData{Title: "Invoice not found", Data: notFoundMessage}
	} else {
		h.logger.Error("load invoice for payment", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if rerr := h.templates.RenderStatus(w, status, page, data); rerr != nil {
		h.logger.Error("render payment error page", slog.Any("error", rerr))
		http.Error(w, http.StatusText(status), status)
	}
}
