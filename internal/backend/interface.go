package backend

import (
	"context"

	"aspire/internal/sheets"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the transport, the optional script runner and an
// optional cleanup function.
type BackendResult struct {
	Transport sheets.Transport
	// Scripts is nil when no Apps Script project is configured.
	Scripts sheets.ScriptRunner
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory specific
	SeedFile string

	// XLSX specific
	XLSXPath string

	// Google specific
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	AppsScriptID             string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	XLSXBackend   BackendType = "xlsx"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, XLSXBackend:
		return true
	default:
		return false
	}
}
