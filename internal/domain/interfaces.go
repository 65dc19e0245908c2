package domain

import (
	"context"
)

// PredictionRepository defines the interface for prediction audit persistence
type PredictionRepository interface {
	Create(ctx context.Context, record *PredictionRecord) error
	GetByID(ctx context.Context, id string) (*PredictionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*PredictionRecord, error)
}

// PredictionCache stores results of deterministic predictions
type PredictionCache interface {
	Get(ctx context.Context, key string) (*PredictionResult, bool, error)
	Set(ctx context.Context, key string, result *PredictionResult) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
