package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/salon-inventory/internal/app"
	"github.com/odyssey-erp/salon-inventory/internal/observability"
	"github.com/odyssey-erp/salon-inventory/internal/platform/cache"
	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
	"github.com/odyssey-erp/salon-inventory/jobs"
)

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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.Postgres())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cfg.Redis()
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		// Analytics falls back to uncached reads and alerts are not queued.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var (
		jobClient *jobs.Client
		inspector *asynq.Inspector
	)
	if redisClient != nil {
		jobClient = jobs.NewClient(redisOpts.AsynqOpt())
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector = asynq.NewInspector(redisOpts.AsynqOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("job inspector close", slog.Any("error", err))
			}
		}()
	}

	params, err := app.BuildRouterParams(app.Dependencies{
		Logger:     logger,
		Config:     cfg,
		Pool:       dbpool,
		Redis:      redisClient,
		JobClient:  jobClient,
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    observability.NewMetrics(),
	})
	if err != nil {
		logger.Error("build application", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
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
