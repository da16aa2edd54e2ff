package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"aspire/internal/core"
)

// Data backends.
const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
)

type Config struct {
	// HTTP Server
	Port           string
	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend    string
	XLSXPath       string
	MemorySeedFile string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google
	GoogleSpreadsheetID      string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	AppsScriptID             string

	// Content
	DataMapJSON           string
	VersionCacheSize      int
	VersionCacheTTL       time.Duration
	VersionResolveTimeout time.Duration

	// Worker
	WorkerPrefetch int
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:    getEnv("DATA_BACKEND", BackendMemory),
		XLSXPath:       getEnv("XLSX_PATH", ""),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/aspire.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "aspire"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "submissions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		AppsScriptID:             getEnv("APPS_SCRIPT_ID", ""),

		DataMapJSON:           getEnv("DATA_MAP_JSON", ""),
		VersionCacheSize:      getEnvInt("VERSION_CACHE_SIZE", 256),
		VersionCacheTTL:       getEnvDuration("VERSION_CACHE_TTL", 0),
		VersionResolveTimeout: getEnvDuration("VERSION_RESOLVE_TIMEOUT", 15*time.Second),

		WorkerPrefetch: getEnvInt("WORKER_PREFETCH", 4),
	}
}

// DataMap parses DATA_MAP_JSON, the default named ranges for spreadsheets
// that have none stored.
func (c *Config) DataMap() (core.DataMap, error) {
	dm := core.DataMap{}
	if strings.TrimSpace(c.DataMapJSON) == "" {
		return dm, nil
	}
	if err := json.Unmarshal([]byte(c.DataMapJSON), &dm); err != nil {
		return nil, fmt.Errorf("parse DATA_MAP_JSON: %w", err)
	}
	return dm, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	validBackends := []string{BackendMemory, BackendSheets, BackendXLSX}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendXLSX:
		if c.XLSXPath == "" {
			errors = append(errors, "XLSX_PATH is required when using xlsx backend")
		} else if _, err := os.Stat(c.XLSXPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("workbook does not exist: %s", c.XLSXPath))
		}
	case BackendSheets:
		hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != ""
		if !hasServiceAccount && !(hasClient && hasToken) {
			errors = append(errors, "sheets backend needs GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*, or GOOGLE_SERVICE_ACCOUNT_*")
		}
		for _, f := range []struct{ name, path string }{
			{"Google OAuth client file", c.GoogleOAuthClientFile},
			{"Google OAuth token file", c.GoogleOAuthTokenFile},
			{"Google service account file", c.GoogleServiceAccountFile},
		} {
			if f.path == "" {
				continue
			}
			if _, err := os.Stat(f.path); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("%s does not exist: %s", f.name, f.path))
			}
		}
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.DataMap(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.VersionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid version cache size %d: must be at least 1", c.VersionCacheSize))
	}
	if c.VersionCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid version cache TTL %v: must not be negative", c.VersionCacheTTL))
	}
	if c.VersionResolveTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid version resolve timeout %v: must be at least 1 second", c.VersionResolveTimeout))
	}
	if c.RequestTimeout < time.Second || c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be between 1 second and 5 minutes", c.RequestTimeout))
	}
	if c.WorkerPrefetch < 1 || c.WorkerPrefetch > 100 {
		errors = append(errors, fmt.Sprintf("invalid worker prefetch %d: must be between 1 and 100", c.WorkerPrefetch))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
