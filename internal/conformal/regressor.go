// Package conformal implements conformal predictive distributions on top of
// a fitted point regressor.
package conformal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Regressor is the base point-prediction capability.
type Regressor interface {
	Predict(X [][]float64) ([]float64, error)
}

// LinearRegressor is a fitted linear model (ordinary, ridge or lasso all
// reduce to an intercept and one coefficient per feature).
type LinearRegressor struct {
	Intercept    float64
	Coefficients []float64
}

// NewLinearRegressor creates a linear regressor from fitted parameters.
func NewLinearRegressor(intercept float64, coefficients []float64) *LinearRegressor {
	coef := make([]float64, len(coefficients))
	copy(coef, coefficients)
	return &LinearRegressor{Intercept: intercept, Coefficients: coef}
}

// Predict returns one prediction per row of X.
func (l *LinearRegressor) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(l.Coefficients) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(l.Coefficients))
		}
		out[i] = floats.Dot(row, l.Coefficients) + l.Intercept
	}
	return out, nil
}

// ConformalRegressor pairs a base regressor with the conformity scores it
// retained during calibration. It never mutates the scores after construction.
type ConformalRegressor struct {
	estimator Regressor
	scores    []float64
	symmetric bool
}

// NewConformalRegressor wraps a fitted estimator. scores may contain NaN
// entries; they are dropped whenever the score set is read.
func NewConformalRegressor(estimator Regressor, scores []float64, symmetric bool) *ConformalRegressor {
	s := make([]float64, len(scores))
	copy(s, scores)
	return &ConformalRegressor{estimator: estimator, scores: s, symmetric: symmetric}
}

// Predict delegates to the base estimator.
func (r *ConformalRegressor) Predict(X [][]float64) ([]float64, error) {
	if r.estimator == nil {
		return nil, fmt.Errorf("conformal regressor has no base estimator")
	}
	return r.estimator.Predict(X)
}

// Symmetric reports whether the scores are absolute residuals.
func (r *ConformalRegressor) Symmetric() bool {
	return r.symmetric
}

// ConformityScores returns the retained scores with NaN entries removed.
func (r *ConformalRegressor) ConformityScores() []float64 {
	out := make([]float64, 0, len(r.scores))
	for _, s := range r.scores {
		if !math.IsNaN(s) {
			out = append(out, s)
		}
	}
	return out
}

// Estimator returns the base estimator.
func (r *ConformalRegressor) Estimator() Regressor {
	return r.estimator
}
