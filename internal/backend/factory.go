package backend

import (
	"context"
	"fmt"
	"log/slog"

	"aspire/internal/sheets/google"
	"aspire/internal/sheets/memory"
	"aspire/internal/sheets/xlsx"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case XLSXBackend:
		return f.createXLSXBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Transport: store,
		Scripts:   &memory.ScriptRunner{},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := config.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}
	opts, err := creds.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}

	cli, err := google.New(ctx, f.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	result := &BackendResult{Transport: cli}
	if config.AppsScriptID != "" {
		scripts, err := google.NewScriptClient(ctx, config.AppsScriptID, f.logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Apps Script client: %w", err)
		}
		result.Scripts = scripts
	}

	f.logger.Info("Initialized Google Sheets backend",
		"user_token", creds.HasUserToken(),
		"apps_script", config.AppsScriptID != "")

	return result, nil
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*BackendResult, error) {
	wb, err := xlsx.Open(config.XLSXPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	f.logger.Info("Initialized xlsx backend", "path", config.XLSXPath)

	return &BackendResult{
		Transport: wb,
		Cleanup:   wb.Close,
	}, nil
}
