package domain

import (
	"time"
)

// PredictionResult is the response of one prediction request.
type PredictionResult struct {
	PredictionID       string                 `json:"prediction_id,omitempty"`
	ModelVersion       string                 `json:"model_version,omitempty"`
	PredictedValue     float64                `json:"predicted_value"`
	CI                 []float64              `json:"ci"`
	DeclineProbability float64                `json:"decline_probability"`
	Distribution       []float64              `json:"conformal_predictive_distribution"`
	Imputation         map[string]interface{} `json:"imputation"`
	Summary            *DistributionSummary   `json:"distribution_summary,omitempty"`

	// BaselineScore is the unrounded imputed baseline the decline threshold
	// was derived from. Imputation only carries its truncated rendering.
	BaselineScore *float64 `json:"-"`
}

// DistributionSummary holds descriptive statistics of the predictive distribution.
type DistributionSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Lower returns the lower interval bound.
func (r *PredictionResult) Lower() float64 {
	if len(r.CI) == 0 {
		return 0
	}
	return r.CI[0]
}

// Upper returns the upper interval bound.
func (r *PredictionResult) Upper() float64 {
	if len(r.CI) < 2 {
		return 0
	}
	return r.CI[1]
}

// Baseline returns the imputed baseline global health score, if present.
// It falls back to the rendered imputation when the exact value was not kept.
func (r *PredictionResult) Baseline() (float64, bool) {
	if r.BaselineScore != nil {
		return *r.BaselineScore, true
	}
	switch v := r.Imputation[BaselineScoreField].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Explanation is the opaque result of the explainability hook.
type Explanation interface{}

// PredictionRecord represents a stored prediction audit record
type PredictionRecord struct {
	ID                 string                 `json:"id"`
	RequestID          string                 `json:"request_id,omitempty"`
	ModelName          string                 `json:"model_name"`
	ModelVersion       string                 `json:"model_version"`
	Input              map[string]interface{} `json:"input"`
	PredictedValue     float64                `json:"predicted_value"`
	CILower            float64                `json:"ci_lower"`
	CIUpper            float64                `json:"ci_upper"`
	DeclineProbability float64                `json:"decline_probability"`
	BaselineScore      *float64               `json:"baseline_score,omitempty"`
	Result             *PredictionResult      `json:"result"`
	ProcessingTimeMs   int                    `json:"processing_time_ms"`
	CreatedAt          time.Time              `json:"created_at"`
}
