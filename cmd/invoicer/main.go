package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/invoicer/internal/app"
	"github.com/odyssey-erp/invoicer/internal/document"
	"github.com/odyssey-erp/invoicer/internal/email"
	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/platform/cache"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/internal/shared"
	"github.com/odyssey-erp/invoicer/internal/view"
	"github.com/odyssey-erp/invoicer/jobs"
	"github.com/odyssey-erp/invoicer/report"
	"github.com/odyssey-erp/invoicer/web"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, closeStore, err := app.OpenStore(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("open store", slog.String("backend", cfg.StoreBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	provider, err := settings.Load(ctx, store, logger)
	if err != nil {
		logger.Error("load settings", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	invoiceStore := invoice.NewStore(store, logger)
	invoiceService := invoice.NewService(invoiceStore, invoice.NewNormalizer(provider), provider, logger)

	documentCache := document.NewCache(redisClient, cfg.DocumentCacheTTL, logger)
	cancelInvoiceEvents := invoiceStore.Subscribe(func(evt invoice.Event) {
		metrics.InvoiceEvent(string(evt.Kind))
		documentCache.BumpAsync()
	})
	defer cancelInvoiceEvents()
	cancelSettingsEvents := provider.Subscribe(func(settings.CompanySettings) {
		documentCache.BumpAsync()
	})
	defer cancelSettingsEvents()

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("static assets", slog.Any("error", err))
		os.Exit(1)
	}
	htmlEncoder := document.NewHTML(templates, staticFS, logger)

	var (
		pdfEncoder   document.Encoder
		reportClient *report.Client
	)
	switch cfg.PDFEngine {
	case app.EngineGotenberg:
		reportClient = report.NewClient(cfg.GotenbergURL)
		pdfEncoder = document.NewGotenberg(htmlEncoder, reportClient)
	default:
		pdfEncoder = document.NewFPDF(staticFS)
	}

	documentService := document.NewService(document.ServiceParams{
		Invoices: invoiceService,
		Renderer: document.NewRenderer(provider, cfg.PublicBaseURL),
		PDF:      pdfEncoder,
		Format:   cfg.PDFEngine,
		Cache:    documentCache,
		Metrics:  metrics,
		Logger:   logger,
	})

	sessionManager := shared.NewSessionManager(redisClient, "invoicer_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invoiceHandler := invoice.NewHandler(logger, invoiceService, invoiceStore)
	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		InvoiceHandler:  invoiceHandler,
		DocumentHandler: document.NewHandler(logger, documentService, htmlEncoder, templates),
		EmailHandler:    email.NewHandler(logger, invoiceService, documentService, email.NewSender(cfg.EmailEndpoint, logger), metrics),
		SettingsHandler: settings.NewHandler(logger, provider),
		PaymentHandler:  payment.NewHandler(logger, invoiceService, templates, csrfManager),
		ReportHandler:   report.NewHandler(reportClient, cfg.PDFEngine, logger),
		JobHandler:      jobs.NewHandler(inspector, jobClient, cfg.InvoiceDueDays, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	server.RegisterOnShutdown(invoiceHandler.Close)

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreBackend), slog.String("pdf_engine", cfg.PDFEngine))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
