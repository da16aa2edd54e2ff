package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"aspire/internal/config"
	"aspire/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    config.BackendSheets,
		MemorySeedFile: "seed.json",
		AppsScriptID:   "script-1",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "seed.json", cfg.SeedFile)
	assert.Equal(t, "script-1", cfg.AppsScriptID)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "postgres"}, true},
		{"xlsx without path", Config{Type: XLSXBackend}, true},
		{"xlsx", Config{Type: XLSXBackend, XLSXPath: "budget.xlsx"}, false},
		{"sheets without credentials", Config{Type: SheetsBackend}, true},
		{"sheets client without token", Config{Type: SheetsBackend, GoogleOAuthClientJSON: "{}"}, true},
		{"sheets user token", Config{Type: SheetsBackend, GoogleOAuthClientJSON: "{}", GoogleOAuthTokenFile: "t.json"}, false},
		{"sheets service account", Config{Type: SheetsBackend, GoogleServiceAccountFile: "sa.json"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentialsPreferInlineJSON(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(tokenPath, []byte(`{"access_token":"x"}`), 0o600))

	creds, err := Config{
		GoogleOAuthClientJSON: `{"installed":{}}`,
		GoogleOAuthClientFile: filepath.Join(dir, "ignored.json"),
		GoogleOAuthTokenFile:  tokenPath,
	}.Credentials()
	require.NoError(t, err)
	assert.Equal(t, `{"installed":{}}`, string(creds.OAuthClientJSON))
	assert.Equal(t, `{"access_token":"x"}`, string(creds.OAuthTokenJSON))
	assert.Empty(t, creds.ServiceAccountJSON)

	_, err = Config{GoogleServiceAccountFile: filepath.Join(dir, "missing.json")}.Credentials()
	assert.Error(t, err)
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	require.NotNil(t, res.Transport)
	require.NotNil(t, res.Scripts)
	assert.Nil(t, res.Cleanup)

	blocks, err := res.Transport.Read(context.Background(), memory.DemoSpreadsheetID, []string{"BackendData!2:2"})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.NotEmpty(t, blocks[0].Values)
}

func TestCreateXLSXBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: XLSXBackend, XLSXPath: path})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	assert.Nil(t, res.Scripts)
	assert.NoError(t, res.Cleanup())

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: XLSXBackend, XLSXPath: filepath.Join(t.TempDir(), "missing.xlsx")})
	assert.Error(t, err)
}
