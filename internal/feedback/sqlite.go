package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite outcome store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const outcomeColumns = `id, prediction_id, model_version, predicted_value, ci_lower, ci_upper,
	decline_probability, decline_threshold, observed_value, notes, created_at, updated_at`

// scanOutcome scans a row into an Outcome struct.
func scanOutcome(s scanner) (*Outcome, error) {
	o := &Outcome{}
	err := s.Scan(
		&o.ID, &o.PredictionID, &o.ModelVersion, &o.PredictedValue, &o.CILower, &o.CIUpper,
		&o.DeclineProbability, &o.DeclineThreshold, &o.ObservedValue, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcome_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction_id TEXT NOT NULL UNIQUE,
		model_version TEXT NOT NULL DEFAULT '',
		predicted_value REAL NOT NULL,
		ci_lower REAL NOT NULL,
		ci_upper REAL NOT NULL,
		decline_probability REAL NOT NULL,
		decline_threshold REAL NOT NULL DEFAULT 0,
		observed_value REAL NOT NULL,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outcome_model_version ON outcome_feedback(model_version);
	CREATE INDEX IF NOT EXISTS idx_outcome_created_at ON outcome_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the outcome of a prediction.
func (s *SQLiteStore) Save(ctx context.Context, outcome *Outcome) error {
	now := time.Now()

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM outcome_feedback WHERE prediction_id = ?",
		outcome.PredictionID,
	).Scan(&existingID)

	if err == nil {
		outcome.ID = existingID
		outcome.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE outcome_feedback SET
				model_version = ?,
				predicted_value = ?,
				ci_lower = ?,
				ci_upper = ?,
				decline_probability = ?,
				decline_threshold = ?,
				observed_value = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			outcome.ModelVersion,
			outcome.PredictedValue,
			outcome.CILower,
			outcome.CIUpper,
			outcome.DeclineProbability,
			outcome.DeclineThreshold,
			outcome.ObservedValue,
			outcome.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	outcome.CreatedAt = now
	outcome.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO outcome_feedback (
			prediction_id, model_version, predicted_value, ci_lower, ci_upper,
			decline_probability, decline_threshold, observed_value, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	outcome.ID = id

	return nil
}

// Get retrieves the outcome of a prediction.
func (s *SQLiteStore) Get(ctx context.Context, predictionID string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+outcomeColumns+" FROM outcome_feedback WHERE prediction_id = ? LIMIT 1",
		predictionID,
	)

	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return o, nil
}

// List returns outcomes with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+outcomeColumns+" FROM outcome_feedback ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_feedback").Scan(&count)
	return count, err
}

// Delete removes an outcome by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_feedback WHERE id = ?", id)
	return err
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
