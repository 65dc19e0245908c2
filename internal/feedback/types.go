// Package feedback stores observed follow-up outcomes for served predictions.
// Comparing observed scores with the reported intervals tracks whether the
// conformal calibration still holds.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/bd4predict/predict-api/internal/domain"
)

// Outcome is the observed 12-month score for one served prediction.
type Outcome struct {
	ID                 int64     `json:"id,omitempty"`
	PredictionID       string    `json:"prediction_id"`
	ModelVersion       string    `json:"model_version"`
	PredictedValue     float64   `json:"predicted_value"`
	CILower            float64   `json:"ci_lower"`
	CIUpper            float64   `json:"ci_upper"`
	DeclineProbability float64   `json:"decline_probability"`
	DeclineThreshold   float64   `json:"decline_threshold"` // Baseline score minus the decline margin
	ObservedValue      float64   `json:"observed_value"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Covered reports whether the prediction interval contains the observed score.
func (o *Outcome) Covered() bool {
	return o.ObservedValue >= o.CILower && o.ObservedValue <= o.CIUpper
}

// Declined reports whether the observed score fell below the decline threshold.
func (o *Outcome) Declined() bool {
	return o.ObservedValue < o.DeclineThreshold
}

// AbsoluteError is the distance between the point prediction and the observation.
func (o *Outcome) AbsoluteError() float64 {
	return math.Abs(o.ObservedValue - o.PredictedValue)
}

// NewOutcome builds an outcome from an audited prediction. margin is the
// decline margin that was used when the prediction was served.
func NewOutcome(rec *domain.PredictionRecord, observed, margin float64, notes string) (*Outcome, error) {
	if math.IsNaN(observed) || math.IsInf(observed, 0) || observed < 0 || observed > 100 {
		return nil, domain.NewValidationError("observed_value", "observed score must be within 0 and 100", observed)
	}
	o := &Outcome{
		PredictionID:       rec.ID,
		ModelVersion:       rec.ModelVersion,
		PredictedValue:     rec.PredictedValue,
		CILower:            rec.CILower,
		CIUpper:            rec.CIUpper,
		DeclineProbability: rec.DeclineProbability,
		ObservedValue:      observed,
		Notes:              notes,
	}
	if rec.BaselineScore != nil {
		o.DeclineThreshold = *rec.BaselineScore - margin
	}
	return o, nil
}

// Store defines the interface for outcome storage operations.
type Store interface {
	// Save stores or updates the outcome of a prediction.
	// An existing outcome for the same prediction is replaced.
	Save(ctx context.Context, outcome *Outcome) error

	// Get retrieves the outcome of a prediction, or nil if none was recorded.
	Get(ctx context.Context, predictionID string) (*Outcome, error)

	// List returns outcomes, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Outcome, error)

	// Count returns the total number of outcomes.
	Count(ctx context.Context) (int64, error)

	// Delete removes an outcome by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all outcomes to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports outcomes from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// OutcomeExport represents the JSON export format.
type OutcomeExport struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Outcomes   []*Outcome `json:"outcomes"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}

	export := &OutcomeExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Outcomes:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export OutcomeExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, o := range export.Outcomes {
		existing, err := s.Get(ctx, o.PredictionID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, o); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Open returns the store selected by config.
func Open(config domain.FeedbackConfig) (Store, error) {
	switch config.Driver {
	case "", "sqlite":
		return NewSQLiteStore(config.SQLitePath)
	case "postgres":
		return NewPostgresStoreFromURL(config.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown feedback driver %q", config.Driver)
}
