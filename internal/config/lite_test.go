package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, 10.0, cfg.DeclineMargin)
	assert.Equal(t, "clamp", cfg.EdgePolicy)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "stdio", cfg.Transport)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("BD4P_DATA_DIR", "/tmp/test-bd4p")
	t.Setenv("BD4P_MODEL_PATH", "/models/m.yaml")
	t.Setenv("BD4P_DECLINE_MARGIN", "7.5")
	t.Setenv("BD4P_EDGE_POLICY", "wrap")
	t.Setenv("BD4P_CACHE_MAX_ITEMS", "500")
	t.Setenv("BD4P_CACHE_TTL", "12h")
	t.Setenv("BD4P_TRANSPORT", "http")
	t.Setenv("BD4P_HTTP_PORT", "9090")
	t.Setenv("BD4P_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-bd4p", cfg.DataDir)
	assert.Equal(t, "/models/m.yaml", cfg.ModelPath)
	assert.Equal(t, 7.5, cfg.DeclineMargin)
	assert.Equal(t, "wrap", cfg.EdgePolicy)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresInvalidValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("BD4P_CACHE_MAX_ITEMS", "-4")
	t.Setenv("BD4P_DECLINE_MARGIN", "ten")
	t.Setenv("BD4P_HTTP_PORT", "port")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 10.0, cfg.DeclineMargin)
	assert.Equal(t, 8000, cfg.HTTPPort)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.bd4predict"}

	assert.Equal(t, "/home/user/.bd4predict/feedback.db", cfg.FeedbackDBPath())
	assert.Equal(t, "/home/user/.bd4predict/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "bd4p")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func TestLiteConfig_ToConfig(t *testing.T) {
	lite := DefaultLiteConfig()
	lite.DataDir = "/data"

	cfg := lite.ToConfig()

	require.NoError(t, Validate(cfg))
	assert.True(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "sqlite", cfg.Feedback.Driver)
	assert.Equal(t, "/data/feedback.db", cfg.Feedback.SQLitePath)
	assert.Equal(t, 10.0, cfg.Model.DeclineMargin)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"BD4P_DATA_DIR",
		"BD4P_MODEL_PATH",
		"BD4P_DECLINE_MARGIN",
		"BD4P_EDGE_POLICY",
		"BD4P_CACHE_MAX_ITEMS",
		"BD4P_CACHE_TTL",
		"BD4P_TRANSPORT",
		"BD4P_HTTP_PORT",
		"BD4P_LOG_LEVEL",
		"BD4P_LOG_FORMAT",
	}
	for _, v := range vars {
		// Setenv registers a restore; Unsetenv then clears for this test.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
