// Package imputation recovers human-readable imputed covariates by running a
// record forward through the fitted preprocessor and inverting each branch.
package imputation

import (
	"fmt"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/model"
)

// Resolver resolves records against one fitted pipeline.
type Resolver struct {
	pipeline *model.Pipeline
}

// NewResolver creates a resolver bound to p.
func NewResolver(p *model.Pipeline) *Resolver {
	return &Resolver{pipeline: p}
}

// Resolve imputes rec with the pipeline bound to r.
func (r *Resolver) Resolve(rec domain.Record) (domain.Record, error) {
	return Resolve(rec, r.pipeline)
}

// Resolve transforms rec through the preprocessor of p, which fills every
// missing value, then inverts the scaler and encoder so the result is
// expressed in the original units and categories. The row index is
// preserved; numeric values keep full precision until rendered.
func Resolve(rec domain.Record, p *model.Pipeline) (domain.Record, error) {
	if p == nil || p.Preprocessor == nil {
		return domain.Record{}, domain.ErrModelNotLoaded
	}
	pre := p.Preprocessor

	row, err := pre.Transform(rec)
	if err != nil {
		return domain.Record{}, fmt.Errorf("imputation forward transform: %w", err)
	}

	out := domain.Record{Index: rec.Index, Values: make(map[string]domain.Value, len(pre.FeatureNamesIn()))}
	for _, b := range pre.Branches {
		part, err := pre.Slice(row, b.Name())
		if err != nil {
			return domain.Record{}, err
		}
		values, err := b.InverseTransform(part)
		if err != nil {
			return domain.Record{}, fmt.Errorf("imputation inverse transform: %w", err)
		}
		for _, name := range b.FeatureNamesIn() {
			out.Set(name, values[name])
		}
	}
	return out, nil
}

// Names returns the resolved columns in preprocessor order: numeric
// columns first, then categorical.
func Names(p *model.Pipeline) []string {
	return p.FeatureNames()
}
