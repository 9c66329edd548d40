package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// Handler exposes the settings editor endpoints.
type Handler struct {
	logger   *slog.Logger
	provider *Provider
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, provider *Provider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, provider: provider}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Put("/", h.update)
	r.Post("/reset", h.reset)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.provider.Current())
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var next CompanySettings
	if err := httpx.DecodeJSON(r, &next); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "settings body must be JSON")
		return
	}
	saved, err := h.provider.Update(r.Context(), next)
	if err != nil {
		h.logger.Warn("update settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	saved, err := h.provider.Reset(r.Context())
	if err != nil {
		h.logger.Error("reset settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}
