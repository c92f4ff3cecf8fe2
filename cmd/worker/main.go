package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
	"github.com/odyssey-erp/ledger/internal/observability"
	"github.com/odyssey-erp/ledger/jobs"
)

func main() {
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
	if cfg.RedisAddr == "" {
		slog.Default().Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ledger, err := app.Bootstrap(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("bootstrap ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer ledger.Close()

	integrityJob := jobs.NewGLIntegrityJob(ledger.Balances, jobs.StoreOrgs{Store: ledger.Store}, logger, jobmetrics.NewMetrics(metrics.Registerer()))
	integrityTask, err := jobs.NewGLIntegrityTask(0)
	if err != nil {
		logger.Error("build gl integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.GLIntegrityCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.GLIntegrityCron, Task: integrityTask})
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("worker started", slog.String("gl_integrity_cron", cfg.GLIntegrityCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
