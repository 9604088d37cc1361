package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadFromEnv reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AGGQ_DRIVER", "AGGQ_DSN", "AGGQ_SCHEMA_FILE", "AGGQ_SOURCES", "AGGQ_QUERY_TIMEOUT",
		"LISTEN_ADDR", "LOG_LEVEL", "ENV", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "aggq.sqlite", cfg.DSN)
	assert.Empty(t, cfg.SchemaFiles)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Contains(t, cfg.Warnings, "AGGQ_SCHEMA_FILE not set, using the built-in merge_requests schema")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGGQ_DRIVER", "postgres")
	t.Setenv("AGGQ_DSN", "postgres://localhost/analytics?sslmode=disable")
	t.Setenv("AGGQ_SCHEMA_FILE", "schemas/a.yaml, schemas/b.yaml")
	t.Setenv("AGGQ_QUERY_TIMEOUT", "5s")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://localhost/analytics?sslmode=disable", cfg.DSN)
	assert.Equal(t, []string{"schemas/a.yaml", "schemas/b.yaml"}, cfg.SchemaFiles)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0)
	assert.Equal(t, 7, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_PostgresRequiresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGGQ_DRIVER", "postgres")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGGQ_DSN is required")
}

func TestLoadFromEnv_InvalidNumbersWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("AGGQ_QUERY_TIMEOUT", "-1s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Contains(t, cfg.Warnings, `ignoring invalid RATE_LIMIT_RPS "fast"`)
	assert.Contains(t, cfg.Warnings, `ignoring invalid AGGQ_QUERY_TIMEOUT "-1s"`)
}

func TestLoadFromEnv_ProductionRejectsWildcardCORS(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS wildcard")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dash.example")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.in}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	assert.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nAGGQ_TEST_KEY=\"quoted value\"\nexport AGGQ_TEST_EXPORTED=yes\nnot a pair\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("AGGQ_TEST_KEY")
		_ = os.Unsetenv("AGGQ_TEST_EXPORTED")
	})

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "quoted value", os.Getenv("AGGQ_TEST_KEY"))
	assert.Equal(t, "yes", os.Getenv("AGGQ_TEST_EXPORTED"))
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("AGGQ_TEST_PRECEDENCE", "from_env")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGGQ_TEST_PRECEDENCE=from_file\n"), 0o600))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("AGGQ_TEST_PRECEDENCE"))
}
