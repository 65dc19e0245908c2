// Package config provides configuration management for the prediction service.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bd4predict/predict-api/internal/conformal"
	"github.com/bd4predict/predict-api/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir   string // Base directory for the feedback database and exports
	ModelPath string // Fitted pipeline artifact

	// Prediction settings
	DeclineMargin float64
	EdgePolicy    string

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".bd4predict")

	return &LiteConfig{
		DataDir:       dataDir,
		ModelPath:     DefaultModelPath,
		DeclineMargin: 10,
		EdgePolicy:    "clamp",
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		Transport:     "stdio",
		HTTPPort:      8000,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data and model
	if v := os.Getenv("BD4P_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BD4P_MODEL_PATH"); v != "" {
		cfg.ModelPath = v
	}

	// Prediction settings
	if v := os.Getenv("BD4P_DECLINE_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.DeclineMargin = f
		}
	}
	if v := os.Getenv("BD4P_EDGE_POLICY"); v != "" {
		cfg.EdgePolicy = v
	}

	// Cache settings
	if v := os.Getenv("BD4P_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("BD4P_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Transport
	if v := os.Getenv("BD4P_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("BD4P_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("BD4P_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BD4P_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration: memory
// cache only, SQLite feedback, no Postgres audit and no rate limiting.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Environment: "lite",
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         c.HTTPPort,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Model: domain.ModelConfig{
			Path:          c.ModelPath,
			DeclineMargin: c.DeclineMargin,
			Bins:          conformal.DefaultBins,
			LowerQuantile: 0.025,
			UpperQuantile: 0.975,
			EdgePolicy:    c.EdgePolicy,
		},
		Cache: domain.CacheConfig{
			Enabled:    true,
			MaxItems:   c.CacheMaxItems,
			DefaultTTL: c.CacheTTL,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		Feedback: domain.FeedbackConfig{
			Driver:     "sqlite",
			SQLitePath: c.FeedbackDBPath(),
		},
		MCP: domain.MCPConfig{
			ServerName:    "bd4predict",
			ServerVersion: "1.0.0",
			TransportType: c.Transport,
		},
	}
}
