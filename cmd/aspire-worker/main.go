package main

import (
	"context"
	"errors"
	"os"
	"time"

	"aspire/internal/amqp"
	"aspire/internal/cli"
	applog "aspire/internal/log"
	"aspire/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting aspire-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

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
	w := worker.NewSubmitWorker(cm, be.Scripts, defaults, fallback, logger)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Consuming submissions",
		"queue", cfg.AMQPQueue,
		"prefetch", cfg.WorkerPrefetch,
		"backend", cfg.DataBackend)
	if err := client.Consume(ctx, cfg.WorkerPrefetch, w); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
