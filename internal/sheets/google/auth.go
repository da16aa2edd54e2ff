package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// jsonUnmarshal is swapped in tests.
var jsonUnmarshal = json.Unmarshal

var ErrMissingCredentials = errors.New("missing Google credentials (set GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_*, or GOOGLE_SERVICE_ACCOUNT_*)")

// Scopes requested for both the Sheets and the Apps Script clients. Scripts
// bound to a budget only touch spreadsheets.
var Scopes = []string{gsheet.SpreadsheetsScope}

// Credentials holds either a user OAuth client plus saved token, or a
// service account key. The user token wins when both are present.
type Credentials struct {
	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
	ServiceAccountJSON []byte
}

// CredentialsFromEnv collects credentials from inline *_JSON variables or
// the files named by *_FILE variables. GOOGLE_APPLICATION_CREDENTIALS is
// accepted as a service account file.
func CredentialsFromEnv() (Credentials, error) {
	var c Credentials
	var err error
	if c.OAuthClientJSON, err = envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE"); err != nil {
		return c, err
	}
	if c.OAuthTokenJSON, err = envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE"); err != nil {
		return c, err
	}
	if c.ServiceAccountJSON, err = envOrFile("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE"); err != nil {
		return c, err
	}
	if len(c.ServiceAccountJSON) == 0 {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			if c.ServiceAccountJSON, err = os.ReadFile(path); err != nil {
				return c, fmt.Errorf("read GOOGLE_APPLICATION_CREDENTIALS: %w", err)
			}
		}
	}
	return c, nil
}

func envOrFile(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return b, nil
}

// HasUserToken reports whether an OAuth client and token are both present.
func (c Credentials) HasUserToken() bool {
	return len(c.OAuthClientJSON) > 0 && len(c.OAuthTokenJSON) > 0
}

// ClientOptions turns the credentials into API client options sharing one
// pooled HTTP client.
func (c Credentials) ClientOptions(ctx context.Context) ([]goption.ClientOption, error) {
	switch {
	case c.HasUserToken():
		cfg, err := goauth.ConfigFromJSON(c.OAuthClientJSON, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		var tok oauth2.Token
		if err := jsonUnmarshal(c.OAuthTokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("oauth token: %w", err)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
		slog.InfoContext(ctx, "Using OAuth user credentials", "has_refresh_token", tok.RefreshToken != "")
		return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, &tok))}, nil
	case len(c.ServiceAccountJSON) > 0:
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(c.ServiceAccountJSON))
		return []goption.ClientOption{
			goption.WithCredentialsJSON(c.ServiceAccountJSON),
			goption.WithScopes(Scopes...),
		}, nil
	case len(c.OAuthClientJSON) > 0:
		return nil, fmt.Errorf("%w: OAuth client has no saved token, run oauth-init", ErrMissingCredentials)
	}
	return nil, ErrMissingCredentials
}

// newHTTPClientWithPooling creates an HTTP client tuned for Google APIs with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
