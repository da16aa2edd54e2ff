package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"aspire/internal/amqp"
	"aspire/internal/cli"
	apphttp "aspire/internal/http"
	applog "aspire/internal/log"
	"aspire/internal/services"
	"aspire/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	fallback, err := cfg.DataMap()
	if err != nil {
		logger.Error("Invalid default DataMap", applog.FieldError, err)
		os.Exit(1)
	}

	defaults := cli.InitDefaultsStore(logger, cfg.SQLiteDBPath)
	defer defaults.Close()

	be := cli.InitBackend(context.Background(), logger, cfg)
	if be.Cleanup != nil {
		defer func() {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}()
	}
	cm := cli.NewContentManager(logger, cfg, be)
	sweeper := cli.StartCacheSweeper(logger, cfg, cm)
	defer sweeper.Stop()

	// Without a broker, or while it is unreachable, submissions are applied
	// synchronously by an in-process worker.
	var queue services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		queue = client
		logger.Info("Submissions are queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - submissions are applied directly")
	}

	direct := worker.NewSubmitWorker(cm, be.Scripts, defaults, fallback, logger)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Content:             cm,
		Submissions:         services.NewSubmissionService(queue, direct, logger),
		Scripts:             be.Scripts,
		ScriptSpreadsheetID: cfg.GoogleSpreadsheetID,
		Defaults:            defaults,
		FallbackDataMap:     fallback,
		Logger:              logger,
		RequestTimeout:      cfg.RequestTimeout,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting aspire server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
