package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/invoicer/internal/app"
	"github.com/odyssey-erp/invoicer/internal/document"
	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/platform/cache"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/jobs"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	if cfg.StoreBackend == app.StoreMemory {
		logger.Error("the worker cannot share an in-memory store with the server")
		os.Exit(1)
	}

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

	invoiceStore := invoice.NewStore(store, logger)
	invoiceService := invoice.NewService(invoiceStore, invoice.NewNormalizer(provider), provider, logger)

	// Status flips change printed documents; invalidate the shared cache.
	documentCache := document.NewCache(redisClient, cfg.DocumentCacheTTL, logger)
	cancelEvents := invoiceStore.Subscribe(func(invoice.Event) {
		documentCache.BumpAsync()
	})
	defer cancelEvents()

	sweepJob := jobs.NewOverdueSweepJob(invoiceService, logger, nil)
	sweepTask, err := jobs.NewOverdueSweepTask(cfg.InvoiceDueDays)
	if err != nil {
		logger.Error("build overdue sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
