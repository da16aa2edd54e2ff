package backend

import (
	"errors"
	"fmt"
	"os"

	"aspire/internal/config"
	"aspire/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SeedFile: appConfig.MemorySeedFile,
		XLSXPath: appConfig.XLSXPath,

		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		AppsScriptID:             appConfig.AppsScriptID,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case XLSXBackend:
		if c.XLSXPath == "" {
			return errors.New("workbook path is required for xlsx backend")
		}

	case SheetsBackend:
		hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != ""
		if !hasServiceAccount && !(hasClient && hasToken) {
			return errors.New("sheets backend needs an OAuth client with a token, or a service account")
		}

	case MemoryBackend:
		// A missing seed file falls back to the demo spreadsheet.
	}

	return nil
}

// Credentials loads the Google credentials named by the config. Inline JSON
// wins over files.
func (c Config) Credentials() (google.Credentials, error) {
	var creds google.Credentials
	var err error
	if creds.OAuthClientJSON, err = inlineOrFile(c.GoogleOAuthClientJSON, c.GoogleOAuthClientFile); err != nil {
		return creds, fmt.Errorf("oauth client: %w", err)
	}
	if creds.OAuthTokenJSON, err = inlineOrFile(c.GoogleOAuthTokenJSON, c.GoogleOAuthTokenFile); err != nil {
		return creds, fmt.Errorf("oauth token: %w", err)
	}
	if creds.ServiceAccountJSON, err = inlineOrFile(c.GoogleServiceAccountJSON, c.GoogleServiceAccountFile); err != nil {
		return creds, fmt.Errorf("service account: %w", err)
	}
	return creds, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SheetsBackend, XLSXBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
