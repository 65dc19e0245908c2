package service

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/conformal"
	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/imputation"
	"github.com/bd4predict/predict-api/internal/model"
)

// DefaultModelConfig returns the calibration settings used when none are
// configured: a ten point decline margin and a 95% interval.
func DefaultModelConfig() domain.ModelConfig {
	return domain.ModelConfig{
		DeclineMargin: 10,
		Bins:          conformal.DefaultBins,
		LowerQuantile: 0.025,
		UpperQuantile: 0.975,
		EdgePolicy:    conformal.EdgeClamp.String(),
	}
}

// Predictor turns patient records into calibrated predictions. The
// pipeline is shared read-only state; a Predictor is safe for concurrent use.
type Predictor struct {
	logger   *logrus.Logger
	pipeline *model.Pipeline
	resolver *imputation.Resolver
	cpd      *conformal.CPD
	settings domain.ModelConfig
}

// NewPredictor creates a predictor over a loaded pipeline.
func NewPredictor(logger *logrus.Logger, pipeline *model.Pipeline, settings domain.ModelConfig) (*Predictor, error) {
	if pipeline == nil {
		return nil, domain.ErrModelNotLoaded
	}
	if settings.Bins <= 0 {
		settings.Bins = conformal.DefaultBins
	}
	if settings.LowerQuantile == 0 && settings.UpperQuantile == 0 {
		settings.LowerQuantile, settings.UpperQuantile = 0.025, 0.975
	}
	policy, err := conformal.ParseEdgePolicy(settings.EdgePolicy)
	if err != nil {
		return nil, err
	}
	settings.EdgePolicy = policy.String()

	cpd, err := conformal.NewCPD(pipeline.Regressor,
		conformal.WithBins(settings.Bins),
		conformal.WithEdgePolicy(policy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build predictive distribution: %w", err)
	}

	return &Predictor{
		logger:   logger,
		pipeline: pipeline,
		resolver: imputation.NewResolver(pipeline),
		cpd:      cpd,
		settings: settings,
	}, nil
}

// Pipeline returns the fitted pipeline the predictor serves.
func (p *Predictor) Pipeline() *model.Pipeline { return p.pipeline }

// Settings returns the effective calibration settings.
func (p *Predictor) Settings() domain.ModelConfig { return p.settings }

// Predict validates one patient and returns its prediction.
func (p *Predictor) Predict(ctx context.Context, patient *domain.PatientRecord) (*domain.PredictionResult, error) {
	if err := patient.Validate(); err != nil {
		return nil, err
	}
	results, err := p.PredictBatch(ctx, []domain.PatientRecord{*patient})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// PredictBatch predicts several patients at once. Each row is evaluated
// against its own decline threshold. A validation failure names the
// offending row and still classifies as a client error.
func (p *Predictor) PredictBatch(ctx context.Context, patients []domain.PatientRecord) ([]*domain.PredictionResult, error) {
	if len(patients) == 0 {
		return nil, nil
	}
	records := make([]domain.Record, len(patients))
	for i := range patients {
		if err := patients[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		// Negative values are the missing sentinel of the request schema.
		records[i] = patients[i].ToRecord().WithMissingSentinels()
		records[i].Index = i
	}
	return p.PredictRecords(ctx, records)
}

// PredictRecords runs the prediction steps on records whose missing values
// are already marked.
func (p *Predictor) PredictRecords(ctx context.Context, records []domain.Record) ([]*domain.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()
	p.logger.WithFields(logrus.Fields{
		"rows":          len(records),
		"model_version": p.pipeline.Metadata.Version,
	}).Debug("Starting prediction")

	// Step 1: impute every row and derive its decline threshold
	imputed := make([]domain.Record, len(records))
	baselines := make([]float64, len(records))
	thresholds := make([]float64, len(records))
	X := make([][]float64, len(records))
	for i, rec := range records {
		res, err := p.resolver.Resolve(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to impute record %d: %w", rec.Index, err)
		}
		baseline, ok := res.Get(domain.BaselineScoreField)
		if !ok || baseline.Missing() {
			return nil, fmt.Errorf("imputed record %d has no %s", rec.Index, domain.BaselineScoreField)
		}
		imputed[i] = res
		baselines[i] = baseline.Num
		thresholds[i] = baseline.Num - p.settings.DeclineMargin

		row, err := p.pipeline.Transform(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to transform record %d: %w", rec.Index, err)
		}
		X[i] = row
	}

	// Step 2: point predictions
	preds, err := p.cpd.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}

	// Step 3: probability of falling below the decline threshold
	declines, err := p.cpd.ProbabilityBelow(X, thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to compute decline probability: %w", err)
	}

	// Step 4: predictive distributions and intervals
	dists, err := p.cpd.Distribution(preds)
	if err != nil {
		return nil, fmt.Errorf("failed to build predictive distribution: %w", err)
	}

	results := make([]*domain.PredictionResult, len(records))
	for i := range records {
		lower, upper, err := p.cpd.Interval(dists[i], p.settings.LowerQuantile, p.settings.UpperQuantile)
		if err != nil {
			return nil, fmt.Errorf("failed to compute interval: %w", err)
		}
		results[i] = &domain.PredictionResult{
			ModelVersion:       p.pipeline.Metadata.Version,
			PredictedValue:     preds[i],
			CI:                 []float64{lower, upper},
			DeclineProbability: declines[i],
			Distribution:       dists[i],
			Imputation:         imputed[i].Map(),
			Summary:            summarize(dists[i]),
			BaselineScore:      &baselines[i],
		}
	}

	p.logger.WithFields(logrus.Fields{
		"rows":            len(records),
		"processing_time": time.Since(startTime),
	}).Debug("Prediction completed")

	return results, nil
}

// Explain is the explainability hook. No explainer is fitted, so it
// returns no explanation.
func (p *Predictor) Explain(ctx context.Context, patient *domain.PatientRecord) (domain.Explanation, error) {
	return nil, nil
}

func summarize(dist []float64) *domain.DistributionSummary {
	data := stats.Float64Data(dist)
	mean, err := data.Mean()
	if err != nil {
		return nil
	}
	median, _ := data.Median()
	sd, _ := data.StandardDeviation()
	lo, _ := data.Min()
	hi, _ := data.Max()
	return &domain.DistributionSummary{Mean: mean, Median: median, StdDev: sd, Min: lo, Max: hi}
}
