package feedback

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd4predict/predict-api/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	return store
}

func testOutcome(predictionID string, observed float64) *Outcome {
	return &Outcome{
		PredictionID:       predictionID,
		ModelVersion:       "1.0.0",
		PredictedValue:     70,
		CILower:            50.95,
		CIUpper:            87.05,
		DeclineProbability: 0.05,
		DeclineThreshold:   50,
		ObservedValue:      observed,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "outcomes.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	o := testOutcome("pred-1", 66.7)
	err := store.Save(context.Background(), o)

	require.NoError(t, err)
	assert.NotZero(t, o.ID, "ID should be assigned")
	assert.False(t, o.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, o.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	o := testOutcome("pred-1", 66.7)
	require.NoError(t, store.Save(ctx, o))
	originalID := o.ID

	// Same prediction, corrected observation
	corrected := testOutcome("pred-1", 41.7)
	corrected.Notes = "re-scored questionnaire"
	require.NoError(t, store.Save(ctx, corrected))

	assert.Equal(t, originalID, corrected.ID, "ID should remain the same on update")

	got, err := store.Get(ctx, "pred-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 41.7, got.ObservedValue)
	assert.Equal(t, "re-scored questionnaire", got.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testOutcome("pred-1", 66.7)))

	tests := []struct {
		name         string
		predictionID string
		wantFound    bool
	}{
		{"existing outcome", "pred-1", true},
		{"unknown prediction", "pred-2", false},
		{"empty id", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Get(ctx, tt.predictionID)
			require.NoError(t, err)
			if !tt.wantFound {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "1.0.0", got.ModelVersion)
			assert.Equal(t, 70.0, got.PredictedValue)
			assert.Equal(t, 50.95, got.CILower)
			assert.Equal(t, 87.05, got.CIUpper)
			assert.Equal(t, 0.05, got.DeclineProbability)
			assert.Equal(t, 50.0, got.DeclineThreshold)
			assert.True(t, got.Covered())
		})
	}
}

func TestSQLiteStore_List(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, testOutcome(fmt.Sprintf("pred-%d", i), 60)))
		time.Sleep(2 * time.Millisecond)
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "pred-4", page[0].PredictionID, "newest first")
	assert.Equal(t, "pred-3", page[1].PredictionID)

	rest, err := store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	o := testOutcome("pred-1", 66.7)
	require.NoError(t, store.Save(ctx, o))
	require.NoError(t, store.Delete(ctx, o.ID))

	got, err := store.Get(ctx, "pred-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	source := createTestStore(t)
	defer source.Close()

	require.NoError(t, source.Save(ctx, testOutcome("pred-1", 66.7)))
	require.NoError(t, source.Save(ctx, testOutcome("pred-2", 33.3)))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Save(ctx, testOutcome("pred-2", 33.3)))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, _, err = target.ImportJSON(ctx, bytes.NewBufferString("not json"))
	assert.Error(t, err)
}

func TestNewOutcome(t *testing.T) {
	baseline := 60.0
	rec := &domain.PredictionRecord{
		ID:                 "pred-1",
		ModelVersion:       "1.0.0",
		PredictedValue:     70,
		CILower:            50.95,
		CIUpper:            87.05,
		DeclineProbability: 0.05,
		BaselineScore:      &baseline,
	}

	tests := []struct {
		name     string
		observed float64
		wantErr  bool
	}{
		{"in range", 45, false},
		{"lower bound", 0, false},
		{"upper bound", 100, false},
		{"negative", -1, true},
		{"above scale", 100.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOutcome(rec, tt.observed, 10, "")
			if tt.wantErr {
				assert.True(t, domain.IsClientError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pred-1", o.PredictionID)
			assert.Equal(t, 50.0, o.DeclineThreshold)
		})
	}

	noBaseline := *rec
	noBaseline.BaselineScore = nil
	o, err := NewOutcome(&noBaseline, 45, 10, "")
	require.NoError(t, err)
	assert.Zero(t, o.DeclineThreshold)
}

func TestOpen(t *testing.T) {
	store, err := Open(domain.FeedbackConfig{SQLitePath: filepath.Join(t.TempDir(), "f.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(domain.FeedbackConfig{Driver: "mongo"})
	assert.Error(t, err)
}
