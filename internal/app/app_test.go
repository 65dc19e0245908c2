package app

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd4predict/predict-api/internal/config"
	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/model/modeltest"
)

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	data, err := json.Marshal(modeltest.Artifact())
	require.NoError(t, err)
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func liteConfig(t *testing.T) *domain.Config {
	t.Helper()
	dir := t.TempDir()
	lite := config.DefaultLiteConfig()
	lite.DataDir = dir
	lite.ModelPath = writeArtifact(t, dir)
	return lite.ToConfig()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBuild_Lite(t *testing.T) {
	a, err := Build(context.Background(), liteConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Outcomes)
	patient := domain.DefaultPatientRecord()
	result, err := a.Predictions.Predict(context.Background(), "req-1", &patient)
	require.NoError(t, err)
	assert.InDelta(t, modeltest.Intercept, result.PredictedValue, 1e-9)

	rec, err := a.Predictions.Get(context.Background(), result.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, modeltest.ModelVersion, rec.ModelVersion)
}

func TestBuild_CacheDisabled(t *testing.T) {
	cfg := liteConfig(t)
	cfg.Cache.Enabled = false

	a, err := Build(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	patient := domain.DefaultPatientRecord()
	_, err = a.Predictions.Predict(context.Background(), "req-1", &patient)
	assert.NoError(t, err)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"missing model", func(c *domain.Config) { c.Model.Path = filepath.Join(t.TempDir(), "absent.json") }},
		{"bad edge policy", func(c *domain.Config) { c.Model.EdgePolicy = "reflect" }},
		{"unknown feedback driver", func(c *domain.Config) { c.Feedback.Driver = "mongo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := liteConfig(t)
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg, quietLogger())
			assert.Error(t, err)
		})
	}
}
