package report

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// Handler reports on the configured PDF engine.
type Handler struct {
	client *Client
	engine string
	logger *slog.Logger
}

// NewHandler creates a report handler. client is nil when PDFs are rendered
// in-process.
func NewHandler(client *Client, engine string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, engine: engine, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if h.client != nil {
		if err := h.client.Ping(r.Context()); err != nil {
			h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "engine": h.engine})
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "engine": h.engine})
}
