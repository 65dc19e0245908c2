package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/model/modeltest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeModel(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(modeltest.Artifact())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPredict(t *testing.T) {
	modelPath := writeModel(t)
	recordPath := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(recordPath, []byte(`{"hn3_dv_c30_ghs": 80}`), 0o644))

	out, err := run(t, "", "predict", "--model", modelPath, "--record", recordPath)
	require.NoError(t, err)
	var result domain.PredictionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 80, result.PredictedValue, 1e-9)
	assert.InDelta(t, 0.25, result.DeclineProbability, 1e-12)
}

func TestPredict_StdinBatch(t *testing.T) {
	out, err := run(t, `[{}, {"hn3_dv_c30_ghs": 80}]`, "predict", "--model", writeModel(t), "--record", "-")
	require.NoError(t, err)
	var results []domain.PredictionResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.InDelta(t, modeltest.Intercept, results[0].PredictedValue, 1e-9)
	assert.InDelta(t, 0.05, results[0].DeclineProbability, 1e-12)
}

func TestPredict_Errors(t *testing.T) {
	modelPath := writeModel(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"missing record flag", "", []string{"predict", "--model", modelPath}},
		{"malformed record", "{", []string{"predict", "--model", modelPath, "--record", "-"}},
		{"empty batch", "[]", []string{"predict", "--model", modelPath, "--record", "-"}},
		{"invalid record", `{"hn1_dv_age_cons": 130}`, []string{"predict", "--model", modelPath, "--record", "-"}},
		{"bad edge policy", "{}", []string{"predict", "--model", modelPath, "--record", "-", "--edge-policy", "reflect"}},
		{"missing model", "{}", []string{"predict", "--model", "absent.json", "--record", "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestModelInspect(t *testing.T) {
	out, err := run(t, "", "model", "inspect", "--model", writeModel(t))
	require.NoError(t, err)

	var report ModelReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, modeltest.ModelVersion, report.Metadata.Version)
	assert.Equal(t, 43, report.InputFeatures)
	assert.Equal(t, modeltest.ScoreCount, report.ScoreCount)
	assert.Equal(t, modeltest.Intercept, report.Intercept)
	assert.Equal(t, 1, report.NonZeroWeights)
	assert.Equal(t, -20.0, report.ScoreMin)
	assert.Equal(t, 18.0, report.ScoreMax)
}

func TestFeedbackExportImportCoverage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")

	store, err := feedback.NewSQLiteStore(src)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &feedback.Outcome{
		PredictionID:     "pred-1",
		ModelVersion:     "1.0.0",
		PredictedValue:   70,
		CILower:          50.95,
		CIUpper:          87.05,
		DeclineThreshold: 50,
		ObservedValue:    65,
	}))
	require.NoError(t, store.Close())

	exportPath := filepath.Join(dir, "export.json")
	_, err = run(t, "", "feedback", "export", "--db", src, "--out", exportPath)
	require.NoError(t, err)

	dst := filepath.Join(dir, "dst.db")
	out, err := run(t, "", "feedback", "import", "--db", dst, "--in", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 outcome(s), skipped 0.")

	out, err = run(t, "", "feedback", "coverage", "--db", dst)
	require.NoError(t, err)
	var report feedback.CoverageReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, 1, report.Covered)
}

func TestSetupMCPClient(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")

	out, err := run(t, "", "setup", "mcp-client", "--client-config", configPath, "--binary", "/opt/bd4predict-mcp-server", "--data-dir", "/var/lib/bd4predict")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered bd4predict")

	out, err = run(t, "", "setup", "status", "--client-config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: registered")
	assert.Contains(t, out, "/opt/bd4predict-mcp-server (exists: false)")
}
