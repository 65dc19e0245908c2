package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bd4predict/predict-api/internal/database"
	"github.com/bd4predict/predict-api/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	migrationRunner, err := database.NewMigrationRunner(config.URL(), "", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testRecord(predicted float64) *domain.PredictionRecord {
	baseline := 60.0
	return &domain.PredictionRecord{
		RequestID:          "req-1",
		ModelName:          "bd4predict-ghs-12m",
		ModelVersion:       "1.0.0",
		Input:              map[string]interface{}{"age": 42.0, "hn1_tumorsite": "1 - oral cavity"},
		PredictedValue:     predicted,
		CILower:            predicted - 19,
		CIUpper:            predicted + 17,
		DeclineProbability: 0.05,
		BaselineScore:      &baseline,
		Result: &domain.PredictionResult{
			PredictedValue:     predicted,
			CI:                 []float64{predicted - 19, predicted + 17},
			DeclineProbability: 0.05,
			Distribution:       []float64{predicted - 20, predicted, predicted + 18},
			Imputation:         map[string]interface{}{"age": 42.0},
		},
		ProcessingTimeMs: 3,
	}
}

func TestPredictionRepository_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPredictionRepository(db.Pool, logger)
	ctx := context.Background()

	record := testRecord(70)
	require.NoError(t, repo.Create(ctx, record))
	_, err := uuid.Parse(record.ID)
	require.NoError(t, err, "generated id should be a UUID")
	assert.False(t, record.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "1.0.0", got.ModelVersion)
	assert.Equal(t, 70.0, got.PredictedValue)
	require.NotNil(t, got.BaselineScore)
	assert.Equal(t, 60.0, *got.BaselineScore)
	assert.Equal(t, "1 - oral cavity", got.Input["hn1_tumorsite"])
	require.NotNil(t, got.Result)
	assert.Equal(t, []float64{51, 87}, got.Result.CI)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	bad := testRecord(70)
	bad.ID = "not-a-uuid"
	assert.True(t, domain.IsClientError(repo.Create(ctx, bad)))
}

func TestPredictionRepository_ListRecent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPredictionRepository(db.Pool, logger)
	ctx := context.Background()

	for _, v := range []float64{60, 70, 80} {
		require.NoError(t, repo.Create(ctx, testRecord(v)))
		time.Sleep(5 * time.Millisecond)
	}

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 80.0, records[0].PredictedValue)
	assert.Equal(t, 70.0, records[1].PredictedValue)
}
