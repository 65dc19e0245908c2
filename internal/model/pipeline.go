// Package model holds the fitted preprocessing pipeline and conformal
// regressor, and loads them from serialized artifacts.
package model

import (
	"fmt"
	"time"

	"github.com/bd4predict/predict-api/internal/conformal"
	"github.com/bd4predict/predict-api/internal/domain"
)

// Metadata describes a fitted model artifact.
type Metadata struct {
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version" yaml:"version"`
	Target      string    `json:"target" yaml:"target"`
	TrainedAt   time.Time `json:"trained_at,omitempty" yaml:"trained_at,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Pipeline is a fitted preprocessor followed by a conformal regressor.
// It is read-only after construction and safe for concurrent use.
type Pipeline struct {
	Metadata     Metadata
	Preprocessor *ColumnTransformer
	Regressor    *conformal.ConformalRegressor
}

// NewPipeline assembles a pipeline and checks that the regressor input
// width matches the preprocessor output.
func NewPipeline(meta Metadata, pre *ColumnTransformer, reg *conformal.ConformalRegressor) (*Pipeline, error) {
	if pre == nil || reg == nil {
		return nil, fmt.Errorf("pipeline needs a preprocessor and a regressor")
	}
	if lin, ok := reg.Estimator().(*conformal.LinearRegressor); ok {
		if got, want := len(lin.Coefficients), len(pre.FeatureNamesOut()); got != want {
			return nil, fmt.Errorf("estimator has %d coefficients, preprocessor produces %d features", got, want)
		}
	}
	return &Pipeline{Metadata: meta, Preprocessor: pre, Regressor: reg}, nil
}

// Transform encodes a record into a model input row.
func (p *Pipeline) Transform(rec domain.Record) ([]float64, error) {
	return p.Preprocessor.Transform(rec)
}

// Predict returns the point prediction for one record.
func (p *Pipeline) Predict(rec domain.Record) (float64, error) {
	row, err := p.Transform(rec)
	if err != nil {
		return 0, fmt.Errorf("transforming record: %w", err)
	}
	preds, err := p.Regressor.Predict([][]float64{row})
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}

// FeatureNames lists the raw input columns the preprocessor consumes.
func (p *Pipeline) FeatureNames() []string {
	return p.Preprocessor.FeatureNamesIn()
}
