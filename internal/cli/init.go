// Package cli provides common CLI initialization utilities shared by
// cmd/aspire and cmd/aspire-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aspire/internal/backend"
	"aspire/internal/cache"
	"aspire/internal/config"
	"aspire/internal/content"
	applog "aspire/internal/log"
	"aspire/internal/storage"
)

// SetupLogger initializes structured logging from the configuration and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// The configured logger is not available yet.
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitDefaultsStore opens the SQLite store of per-spreadsheet DataMaps.
// Returns the store or exits the process on failure.
func InitDefaultsStore(logger *applog.Logger, dbPath string) *storage.DefaultsStore {
	store, err := storage.NewDefaultsStore(dbPath)
	if err != nil {
		logger.Error("Failed to initialize defaults store", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return store
}

// InitBackend builds the configured spreadsheet transport.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Initialized data backend",
		"backend", cfg.DataBackend,
		"scripts", result.Scripts != nil)
	return result
}

// NewContentManager wires a content manager over the backend transport.
func NewContentManager(logger *applog.Logger, cfg *config.Config, b *backend.BackendResult) *content.Manager {
	return content.NewManager(b.Transport, content.Options{
		VersionCacheSize:      cfg.VersionCacheSize,
		VersionCacheTTL:       cfg.VersionCacheTTL,
		VersionResolveTimeout: cfg.VersionResolveTimeout,
		Logger:                logger,
	})
}

// StartCacheSweeper periodically drops expired schema versions when a version
// TTL is configured. The returned manager must be stopped on shutdown.
func StartCacheSweeper(logger *applog.Logger, cfg *config.Config, cm *content.Manager) *cache.Manager {
	m := cache.NewManager(logger.Logger)
	m.Register(cm.Versions().Cache())
	if cfg.VersionCacheTTL > 0 {
		m.StartCleanup(cfg.VersionCacheTTL)
	}
	return m
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
