package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger/cmd/ledger/cli"
	"github.com/odyssey-erp/ledger/internal/app"
	"github.com/odyssey-erp/ledger/internal/observability"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	"github.com/odyssey-erp/ledger/jobs"
)

const usage = `usage: ledger [serve | migrate | jobs trigger gl-integrity [org-id] | jobs stats]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = db.Migrate(cfg.PGDSN, logger)
	case "jobs":
		err = runJobs(ctx, cfg, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	ledger, err := app.Bootstrap(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var jobHandler *jobs.Handler
	if ledger.Redis != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Ledger:     ledger,
		API:        ledger.APIHandlers(),
		JobHandler: jobHandler,
		Metrics:    metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.LedgerStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	helper, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer helper.Close()

	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New(usage)
		}
		var orgID int64
		if len(args) > 2 {
			orgID, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid org id %q", args[2])
			}
		}
		info, err := helper.Trigger(ctx, args[1], orgID)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := helper.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		scheduled, err := helper.ListScheduled(ctx, 10)
		if err != nil {
			return err
		}
		for _, task := range scheduled {
			fmt.Printf("scheduled %s id=%s next=%s\n", task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
		}
	default:
		return errors.New(usage)
	}
	return nil
}
