package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/invoicer/internal/document"
	"github.com/odyssey-erp/invoicer/internal/email"
	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/internal/shared"
	"github.com/odyssey-erp/invoicer/jobs"
	"github.com/odyssey-erp/invoicer/report"
	"github.com/odyssey-erp/invoicer/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	InvoiceHandler  *invoice.Handler
	DocumentHandler *document.Handler
	EmailHandler    *email.Handler
	SettingsHandler *settings.Handler
	PaymentHandler  *payment.Handler
	ReportHandler   *report.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with invoicer defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			params.InvoiceHandler.MountRoutes(r)
			params.DocumentHandler.MountAPIRoutes(r)
			if params.EmailHandler != nil {
				params.EmailHandler.MountRoutes(r)
			}
		})
		r.Route("/documents", params.DocumentHandler.MountPreviewRoutes)
		r.Route("/settings", params.SettingsHandler.MountRoutes)
	})

	r.Route("/invoices", params.DocumentHandler.MountPrintRoutes)

	// Browser forms: the pay page carries a session flash and a CSRF token.
	r.Route(payment.Mount, func(r chi.Router) {
		r.Use(SessionMiddleware(mwConfig), CSRFMiddleware(mwConfig))
		params.PaymentHandler.MountRoutes(r)
	})

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
