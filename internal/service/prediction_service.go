package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/metrics"
)

// PredictionService adds caching, auditing and metrics around a Predictor.
// The cache and repository are optional.
type PredictionService struct {
	logger    *logrus.Logger
	predictor *Predictor
	cache     domain.PredictionCache
	repo      domain.PredictionRepository
}

// NewPredictionService creates a new prediction service
func NewPredictionService(
	logger *logrus.Logger,
	predictor *Predictor,
	cache domain.PredictionCache,
	repo domain.PredictionRepository,
) *PredictionService {
	return &PredictionService{
		logger:    logger,
		predictor: predictor,
		cache:     cache,
		repo:      repo,
	}
}

// Predictor returns the wrapped predictor.
func (s *PredictionService) Predictor() *Predictor { return s.predictor }

// Predict serves one prediction. Results are cached by model version,
// calibration settings and record content; every served prediction gets a
// fresh id and is audited.
func (s *PredictionService) Predict(ctx context.Context, requestID string, patient *domain.PatientRecord) (*domain.PredictionResult, error) {
	startTime := time.Now()
	key, err := CacheKey(s.predictor.Pipeline().Metadata.Version, s.predictor.Settings(), patient)
	if err != nil {
		return nil, err
	}

	outcome := "ok"
	result := s.lookup(ctx, key)
	if result != nil {
		outcome = "cached"
	} else {
		result, err = s.predictor.Predict(ctx, patient)
		if err != nil {
			metrics.ObservePrediction(domain.ErrorCode(err), time.Since(startTime))
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, result); err != nil {
				s.logger.WithError(err).Warn("Failed to cache prediction")
			}
		}
	}

	// Copy so the cached value never carries a request-specific id.
	served := *result
	served.PredictionID = uuid.New().String()

	elapsed := time.Since(startTime)
	metrics.ObservePrediction(outcome, elapsed)
	metrics.ObserveResult(served.DeclineProbability, served.Lower(), served.Upper())

	s.audit(ctx, requestID, patient, &served, elapsed)

	s.logger.WithFields(logrus.Fields{
		"prediction_id":       served.PredictionID,
		"request_id":          requestID,
		"predicted_value":     served.PredictedValue,
		"decline_probability": served.DeclineProbability,
		"outcome":             outcome,
		"processing_time":     elapsed,
	}).Info("Prediction served")

	return &served, nil
}

// Get returns an audited prediction.
func (s *PredictionService) Get(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Recent returns the newest audited predictions.
func (s *PredictionService) Recent(ctx context.Context, limit int) ([]*domain.PredictionRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *PredictionService) lookup(ctx context.Context, key string) *domain.PredictionResult {
	if s.cache == nil {
		return nil
	}
	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Prediction cache lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	return result
}

func (s *PredictionService) audit(ctx context.Context, requestID string, patient *domain.PatientRecord, result *domain.PredictionResult, elapsed time.Duration) {
	if s.repo == nil {
		return
	}
	input, err := toMap(patient)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode prediction input for audit")
		return
	}
	rec := &domain.PredictionRecord{
		ID:                 result.PredictionID,
		RequestID:          requestID,
		ModelName:          s.predictor.Pipeline().Metadata.Name,
		ModelVersion:       result.ModelVersion,
		Input:              input,
		PredictedValue:     result.PredictedValue,
		CILower:            result.Lower(),
		CIUpper:            result.Upper(),
		DeclineProbability: result.DeclineProbability,
		Result:             result,
		ProcessingTimeMs:   int(elapsed.Milliseconds()),
		CreatedAt:          time.Now().UTC(),
	}
	if baseline, ok := result.Baseline(); ok {
		rec.BaselineScore = &baseline
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.WithError(err).WithField("prediction_id", rec.ID).Warn("Failed to audit prediction")
	}
}

// CacheKey derives the cache key of a patient record under a model version
// and the calibration settings that shape the result. The model path is
// left out so replicas loading the same version share entries.
func CacheKey(modelVersion string, settings domain.ModelConfig, patient *domain.PatientRecord) (string, error) {
	payload, err := json.Marshal(patient)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	sum := sha256.New()
	sum.Write([]byte(modelVersion))
	sum.Write([]byte{0})
	fmt.Fprintf(sum, "%g|%d|%g|%g|%s", settings.DeclineMargin, settings.Bins,
		settings.LowerQuantile, settings.UpperQuantile, settings.EdgePolicy)
	sum.Write([]byte{0})
	sum.Write(payload)
	return "prediction:" + hex.EncodeToString(sum.Sum(nil)), nil
}

func toMap(patient *domain.PatientRecord) (map[string]interface{}, error) {
	payload, err := json.Marshal(patient)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
