package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/service/coa"
)

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// clearEnv blanks the variables Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HTTP_ADDR", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT", "IMPORT_DUPLICATES",
		"IMPORT_STRICT_ROLES", "COA_FILE", "COA_WATCH", "COA_LEDGER_ID", "JWT_HS256_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "DEV_SEED"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, coa.DuplicateReject, cfg.Import.Duplicates)
	assert.False(t, cfg.DevSeed)
	require.NoError(t, cfg.Validate())
}

func TestRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/books"
	cfg.Import.Chart = "personal"
	cfg.Import.Duplicates = coa.DuplicateLastWins
	cfg.Auth.JWTSecret = "s3cret"

	path := filepath.Join(t.TempDir(), "books.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DatabaseURL, got.DatabaseURL)
	assert.Equal(t, cfg.Import.Chart, got.Import.Chart)
	assert.Equal(t, coa.DuplicateLastWins, got.Import.Duplicates)
	assert.Equal(t, cfg.HTTP.WriteTimeout, got.HTTP.WriteTimeout)
	assert.Equal(t, "s3cret", got.Auth.JWTSecret)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "books.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"HTTP_ADDR":           ":9090",
		"DATABASE_URL":        "postgres://db/books",
		"LOG_FORMAT":          "text",
		"IMPORT_DUPLICATES":   "LAST_WINS",
		"IMPORT_STRICT_ROLES": "true",
		"COA_FILE":            "/etc/books/chart.json",
		"COA_WATCH":           "yes",
		"COA_LEDGER_ID":       "6f1c1f9e-8e7b-4f43-9a59-0b8e8f0d8a11",
		"JWT_HS256_SECRET":    "k",
		"DEV_SEED":            "1",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://db/books", cfg.DatabaseURL)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, coa.DuplicateLastWins, cfg.Import.Duplicates)
	assert.True(t, cfg.Import.WatchChart)
	assert.Equal(t, coa.Options{Duplicates: coa.DuplicateLastWins, StrictRoles: true}, cfg.Import.Options())
	assert.True(t, cfg.DevSeed)
	assert.Equal(t, "k", cfg.Auth.JWTSecret)
	id, err := cfg.ImportLedgerID()
	require.NoError(t, err)
	assert.Equal(t, "6f1c1f9e-8e7b-4f43-9a59-0b8e8f0d8a11", id.String())
}

func TestEnvBadBool(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{"DEV_SEED": "maybe"}))
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"bad policy", func(c *Config) { c.Import.Duplicates = "first_wins" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"watch without chart", func(c *Config) { c.Import.WatchChart = true; c.Import.LedgerID = "6f1c1f9e-8e7b-4f43-9a59-0b8e8f0d8a11" }},
		{"watch without ledger", func(c *Config) { c.Import.WatchChart = true; c.Import.Chart = "chart.json" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalid)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "text"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "debug"}.NewLogger(&buf).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
