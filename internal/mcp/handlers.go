package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/metrics"
)

// PredictOutcomeParams defines parameters for the predict_outcome tool
type PredictOutcomeParams struct {
	Patient map[string]any `json:"patient,omitempty" jsonschema:"patient covariates keyed by field name; omitted fields take the default record values"`
}

// GetDefaultRecordParams defines parameters for the get_default_record tool
type GetDefaultRecordParams struct{}

// RecordOutcomeParams defines parameters for the record_outcome tool
type RecordOutcomeParams struct {
	PredictionID  string  `json:"prediction_id" jsonschema:"id returned by predict_outcome"`
	ObservedValue float64 `json:"observed_value" jsonschema:"observed 12-month global health score from 0 to 100"`
	Notes         string  `json:"notes,omitempty"`
}

// CoverageReportParams defines parameters for the coverage_report tool
type CoverageReportParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of most recent outcomes to include, default 1000"`
}

// RecordOutcomeResult defines the result structure for the record_outcome tool
type RecordOutcomeResult struct {
	Outcome  *feedback.Outcome `json:"outcome"`
	Covered  bool              `json:"covered"`
	Declined bool              `json:"declined"`
}

func (s *Server) handlePredictOutcome(ctx context.Context, req *mcp.CallToolRequest, params PredictOutcomeParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "predict_outcome").Info("Tool invoked")

	patient := domain.DefaultPatientRecord()
	if len(params.Patient) > 0 {
		data, err := json.Marshal(params.Patient)
		if err != nil {
			return s.createErrorResult("Invalid patient record", err), nil, nil
		}
		if err := json.Unmarshal(data, &patient); err != nil {
			return s.createErrorResult("Invalid patient record", err), nil, nil
		}
	}

	result, err := s.predictions.Predict(ctx, "mcp-"+uuid.New().String(), &patient)
	if err != nil {
		if domain.IsClientError(err) {
			return s.createErrorResult("Invalid patient record", err), nil, nil
		}
		return nil, nil, fmt.Errorf("prediction failed: %w", err)
	}

	return s.createJSONResult(fmt.Sprintf(
		"Predicted 12-month global health status %.1f (95%% interval %.1f to %.1f), decline probability %.2f",
		result.PredictedValue, result.Lower(), result.Upper(), result.DeclineProbability,
	), result)
}

func (s *Server) handleGetDefaultRecord(ctx context.Context, req *mcp.CallToolRequest, params GetDefaultRecordParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_default_record").Debug("Tool invoked")
	return s.createJSONResult("", domain.DefaultPatientRecord())
}

func (s *Server) handleRecordOutcome(ctx context.Context, req *mcp.CallToolRequest, params RecordOutcomeParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "record_outcome").Info("Tool invoked")

	if params.PredictionID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("prediction_id is required")), nil, nil
	}

	rec, err := s.predictions.Get(ctx, params.PredictionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.createErrorResult("Unknown prediction", err), nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load prediction: %w", err)
	}

	outcome, err := feedback.NewOutcome(rec, params.ObservedValue, s.predictions.Predictor().Settings().DeclineMargin, params.Notes)
	if err != nil {
		return s.createErrorResult("Invalid outcome", err), nil, nil
	}
	if err := s.outcomes.Save(ctx, outcome); err != nil {
		return nil, nil, fmt.Errorf("failed to save outcome: %w", err)
	}
	metrics.OutcomeRecorded(outcome.Covered())

	return s.createJSONResult("", RecordOutcomeResult{
		Outcome:  outcome,
		Covered:  outcome.Covered(),
		Declined: outcome.Declined(),
	})
}

func (s *Server) handleCoverageReport(ctx context.Context, req *mcp.CallToolRequest, params CoverageReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "coverage_report").Debug("Tool invoked")

	limit := params.Limit
	if limit <= 0 {
		limit = 1000
	}
	outcomes, err := s.outcomes.List(ctx, limit, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return s.createJSONResult("", feedback.Coverage(outcomes))
}

// createJSONResult renders v as indented JSON, prefixed by an optional summary line.
func (s *Server) createJSONResult(summary string, v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	text := string(data)
	if summary != "" {
		text = summary + "\n\n" + text
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, v, nil
}

func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)},
		},
	}
}
