package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/money"
	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// Handler serves the invoice JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     *Store
	keepAlive time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewHandler constructs the invoice API handler.
func NewHandler(logger *slog.Logger, service *Service, store *Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, store: store, keepAlive: 15 * time.Second, done: make(chan struct{})}
}

// Close ends every open event stream. Hook it to server shutdown.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// MountRoutes registers the invoice API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.save)
	r.Get("/draft", h.draft)
	r.Get("/events", h.events)
	r.Delete("/by-id/{id}", h.remove)
	r.Get("/{number}", h.show)
}

type listEntry struct {
	Record
	Totals money.Breakdown `json:"totals"`
}

type saveResponse struct {
	Invoice      Record             `json:"invoice"`
	Totals       money.Breakdown    `json:"totals"`
	Notification httpx.Notification `json:"notification"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	company := h.service.Settings()
	entries := make([]listEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, listEntry{Record: rec, Totals: rec.Totals(company)})
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) draft(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Draft())
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var draft Record
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invoice body must be JSON")
		return
	}
	rec, err := h.service.Save(r.Context(), draft)
	if err != nil {
		h.logger.Warn("save invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saveResponse{
		Invoice: rec,
		Totals:  rec.Totals(h.service.Settings()),
		Notification: httpx.Notification{
			Kind:    "success",
			Message: fmt.Sprintf("Invoice %s saved! You can now view it via QR.", rec.InvoiceNumber),
		},
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listEntry{Record: rec, Totals: rec.Totals(h.service.Settings())})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.logger.Error("delete invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Notify(w, http.StatusOK, "success", "Invoice deleted")
}

// events streams store mutations as server-sent events.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Streaming Unsupported", "response writer cannot flush")
		return
	}

	queue := make(chan Event, 16)
	cancel := h.store.Subscribe(func(evt Event) {
		select {
		case queue <- evt:
		default:
			h.logger.Warn("event subscriber lagging, dropping event", slog.String("invoice", evt.Record.InvoiceNumber))
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case evt := <-queue:
			payload, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("encode event", slog.Any("error", err))
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
			flusher.Flush()
		}
	}
}
