package document

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
	"github.com/odyssey-erp/invoicer/internal/view"
)

// Handler serves document trees, print views, PDFs and QR images.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	html      *HTML
	templates *view.Engine
}

// NewHandler constructs the document handler.
func NewHandler(logger *slog.Logger, service *Service, html *HTML, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, html: html, templates: templates}
}

// MountAPIRoutes registers the tree endpoint under /api/invoices.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/{number}/document", h.document)
}

// MountPreviewRoutes registers the draft preview under /api/documents.
func (h *Handler) MountPreviewRoutes(r chi.Router) {
	r.Post("/preview", h.preview)
}

// MountPrintRoutes registers the HTML/PDF/QR outputs under /invoices.
func (h *Handler) MountPrintRoutes(r chi.Router) {
	r.Get("/{number}/print", h.print)
	r.Get("/{number}/pdf", h.pdf)
	r.Get("/{number}/qr.png", h.qr)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.logFailure("render document", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var draft invoice.Record
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "draft body must be JSON")
		return
	}
	tree, err := h.service.Preview(draft)
	if err != nil {
		h.logFailure("render preview", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.logFailure("render print view", err)
		h.renderPageError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.html.Write(w, tree, true); err != nil {
		h.logger.Error("write print view", slog.Any("error", err))
	}
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	pdf, err := h.service.PDF(r.Context(), number)
	if err != nil {
		h.logFailure("render pdf", err)
		h.renderPageError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+number+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	png, err := payment.QRCode(tree.PaymentLink.URL, payment.DefaultQROptions())
	if err != nil {
		h.logger.Error("encode qr", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// renderPageError shows the inline error panel for browser-facing routes.
func (h *Handler) renderPageError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		page   = "pages/error.html"
		data   = view.TemplateData{Title: "Something went wrong", Data: "The document could not be produced. Please try again."}
	)
	var renderErr *RenderError
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		status = http.StatusNotFound
		page = "pages/not_found.html"
		data = view.TemplateData{Title: "Invoice not found", Data: "Invoice not found. Please check the link."}
	case errors.As(err, &renderErr):
		status = http.StatusUnprocessableEntity
		data = view.TemplateData{Title: "Cannot render invoice", Data: renderErr.Reason}
	case errors.Is(err, httpx.ErrUpstream):
		status = http.StatusBadGateway
		data.Data = "The PDF service is unavailable. Please try again later."
	}
	if rerr := h.templates.RenderStatus(w, status, page, data); rerr != nil {
		h.logger.Error("render error page", slog.Any("error", rerr))
		http.Error(w, http.StatusText(status), status)
	}
}

func (h *Handler) logFailure(msg string, err error) {
	if errors.Is(err, httpx.ErrNotFound) {
		return
	}
	h.logger.Warn(msg, slog.Any("error", err))
}
