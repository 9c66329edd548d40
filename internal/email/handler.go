package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// PDFSource produces the PDF of a saved invoice.
type PDFSource interface {
	PDF(ctx context.Context, number string) ([]byte, error)
}

// Handler exposes the send-invoice endpoint.
type Handler struct {
	logger   *slog.Logger
	invoices *invoice.Service
	pdfs     PDFSource
	sender   *Sender
	metrics  *observability.Metrics
	validate *validator.Validate
	inflight singleflight.Group
}

// NewHandler constructs the email handler.
func NewHandler(logger *slog.Logger, invoices *invoice.Service, pdfs PDFSource, sender *Sender, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		invoices: invoices,
		pdfs:     pdfs,
		sender:   sender,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountRoutes registers the route under /api/invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{number}/email", h.send)
}

type sendRequest struct {
	Email string `json:"email"`
}

type recipientRule struct {
	Email string `validate:"required,email"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	var body sendRequest
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "body must be JSON")
		return
	}

	rec, err := h.invoices.Get(r.Context(), number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipient := strings.TrimSpace(body.Email)
	if recipient == "" {
		recipient = rec.ClientEmail
	}
	if err := h.validate.Struct(recipientRule{Email: recipient}); err != nil {
		httpx.RespondError(w, fmt.Errorf("recipient %q: %w", recipient, httpx.ErrValidation))
		return
	}

	// Double-clicks on "send" collapse into one delivery per recipient.
	sendCtx := context.WithoutCancel(r.Context())
	resultChan := h.inflight.DoChan(number+"|"+recipient, func() (any, error) {
		pdf, err := h.pdfs.PDF(sendCtx, number)
		if err != nil {
			return nil, err
		}
		err = h.sender.Send(sendCtx, number, recipient, pdf)
		h.metrics.EmailDelivered(err)
		return nil, err
	})
	var res singleflight.Result
	select {
	case <-r.Context().Done():
		h.logger.Info("email invoice abandoned by client", slog.String("invoice", number))
		return
	case res = <-resultChan:
	}
	if res.Err != nil {
		h.logger.Warn("email invoice", slog.String("invoice", number), slog.Bool("shared", res.Shared), slog.Any("error", res.Err))
		httpx.RespondError(w, res.Err)
		return
	}
	httpx.Notify(w, http.StatusOK, "success", fmt.Sprintf("Invoice %s sent to %s", number, recipient))
}
