package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
)

// PredictionRepository persists the prediction audit trail in Postgres.
type PredictionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *pgxpool.Pool, logger *logrus.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:  db,
		log: logger,
	}
}

const predictionColumns = `id, request_id, model_name, model_version, input, predicted_value,
	ci_lower, ci_upper, decline_probability, baseline_score, result, processing_time_ms, created_at`

// Create inserts a new prediction record. A missing ID is generated.
func (r *PredictionRepository) Create(ctx context.Context, record *domain.PredictionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.NewValidationError("id", "prediction id must be a UUID", record.ID)
	}

	input, err := json.Marshal(record.Input)
	if err != nil {
		return fmt.Errorf("encoding prediction input: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("encoding prediction result: %w", err)
	}

	query := `
		INSERT INTO predictions (
			id, request_id, model_name, model_version, input, predicted_value,
			ci_lower, ci_upper, decline_probability, baseline_score, result, processing_time_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query,
		id,
		record.RequestID,
		record.ModelName,
		record.ModelVersion,
		input,
		record.PredictedValue,
		record.CILower,
		record.CIUpper,
		record.DeclineProbability,
		record.BaselineScore,
		result,
		record.ProcessingTimeMs,
	).Scan(&record.CreatedAt)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"prediction_id": record.ID,
			"error":         err,
		}).Error("Failed to create prediction record")
		return fmt.Errorf("creating prediction record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"prediction_id": record.ID,
		"model_version": record.ModelVersion,
	}).Debug("Prediction record created")

	return nil
}

// GetByID retrieves a prediction record by its ID
func (r *PredictionRepository) GetByID(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("prediction %q not found: %w", id, domain.ErrNotFound)
	}

	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`

	record, err := scanPrediction(r.db.QueryRow(ctx, query, parsed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prediction %q not found: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"prediction_id": id,
			"error":         err,
		}).Error("Failed to get prediction by ID")
		return nil, fmt.Errorf("getting prediction by ID: %w", err)
	}

	return record, nil
}

// ListRecent returns the newest prediction records first.
func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]*domain.PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.WithError(err).Error("Failed to list recent predictions")
		return nil, fmt.Errorf("listing predictions: %w", err)
	}
	defer rows.Close()

	var records []*domain.PredictionRecord
	for rows.Next() {
		record, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prediction rows: %w", err)
	}

	return records, nil
}

func scanPrediction(row pgx.Row) (*domain.PredictionRecord, error) {
	var (
		record        domain.PredictionRecord
		id            uuid.UUID
		input, result []byte
	)
	err := row.Scan(
		&id,
		&record.RequestID,
		&record.ModelName,
		&record.ModelVersion,
		&input,
		&record.PredictedValue,
		&record.CILower,
		&record.CIUpper,
		&record.DeclineProbability,
		&record.BaselineScore,
		&result,
		&record.ProcessingTimeMs,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.ID = id.String()

	if err := json.Unmarshal(input, &record.Input); err != nil {
		return nil, fmt.Errorf("decoding prediction input: %w", err)
	}
	if err := json.Unmarshal(result, &record.Result); err != nil {
		return nil, fmt.Errorf("decoding prediction result: %w", err)
	}
	return &record, nil
}
