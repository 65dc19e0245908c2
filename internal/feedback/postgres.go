package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL outcome store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL outcome store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the outcome of a prediction.
func (s *PostgresStore) Save(ctx context.Context, outcome *Outcome) error {
	now := time.Now()

	query := `
		INSERT INTO outcome_feedback (
			prediction_id, model_version, predicted_value, ci_lower, ci_upper,
			decline_probability, decline_threshold, observed_value, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (prediction_id) DO UPDATE SET
			model_version = EXCLUDED.model_version,
			predicted_value = EXCLUDED.predicted_value,
			ci_lower = EXCLUDED.ci_lower,
			ci_upper = EXCLUDED.ci_upper,
			decline_probability = EXCLUDED.decline_probability,
			decline_threshold = EXCLUDED.decline_threshold,
			observed_value = EXCLUDED.observed_value,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		outcome.PredictionID,
		outcome.ModelVersion,
		outcome.PredictedValue,
		outcome.CILower,
		outcome.CIUpper,
		outcome.DeclineProbability,
		outcome.DeclineThreshold,
		outcome.ObservedValue,
		outcome.Notes,
		now,
		now,
	).Scan(&outcome.ID, &outcome.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	outcome.UpdatedAt = now
	return nil
}

// Get retrieves the outcome of a prediction.
func (s *PostgresStore) Get(ctx context.Context, predictionID string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+outcomeColumns+" FROM outcome_feedback WHERE prediction_id = $1 LIMIT 1",
		predictionID,
	)

	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return o, nil
}

// List returns outcomes with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+outcomeColumns+" FROM outcome_feedback ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var result []*Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}

	return result, rows.Err()
}

// Count returns the total number of outcomes.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// Delete removes an outcome by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}
	return nil
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
