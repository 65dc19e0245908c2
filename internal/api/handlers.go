package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/metrics"
	"github.com/bd4predict/predict-api/internal/middleware"
)

// maxBatchSize bounds /api/v1/predict/batch requests.
const maxBatchSize = 500

// maxListLimit caps the ?limit query parameter of list endpoints.
const maxListLimit = 1000

// OutcomeRequest is the body of POST /api/v1/predictions/:id/outcome.
type OutcomeRequest struct {
	ObservedValue *float64 `json:"observed_value" binding:"required"`
	Notes         string   `json:"notes" binding:"max=2000"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "BD4Predict API is up and running! The default request payload is served at /api/v1/schema/defaults",
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	p := s.predictions.Predictor()
	meta := p.Pipeline().Metadata
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now().UTC(),
		"model":         meta.Name,
		"model_version": meta.Version,
		"score_count":   len(p.Pipeline().Regressor.ConformityScores()),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	patient := domain.DefaultPatientRecord()
	if err := c.ShouldBindJSON(&patient); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.predictions.Predict(c.Request.Context(), c.GetString(middleware.RequestIDKey), &patient)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePredictBatch(c *gin.Context) {
	var patients []domain.PatientRecord
	if err := c.ShouldBindJSON(&patients); err != nil {
		s.badRequest(c, err)
		return
	}
	if len(patients) == 0 || len(patients) > maxBatchSize {
		s.fail(c, domain.NewValidationError("body", "batch must hold between 1 and 500 records", len(patients)))
		return
	}

	start := time.Now()
	results, err := s.predictions.Predictor().PredictBatch(c.Request.Context(), patients)
	if err != nil {
		metrics.ObservePrediction(domain.ErrorCode(err), time.Since(start))
		s.fail(c, err)
		return
	}
	metrics.ObservePrediction("batch", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"count": len(results), "results": results})
}

func (s *Server) handleDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, domain.DefaultPatientRecord())
}

func (s *Server) handleModel(c *gin.Context) {
	p := s.predictions.Predictor()
	settings := p.Settings()
	c.JSON(http.StatusOK, gin.H{
		"metadata":       p.Pipeline().Metadata,
		"features":       p.Pipeline().Preprocessor.FeatureNamesIn(),
		"feature_count":  len(p.Pipeline().FeatureNames()),
		"score_count":    len(p.Pipeline().Regressor.ConformityScores()),
		"decline_margin": settings.DeclineMargin,
		"bins":           settings.Bins,
		"interval":       []float64{settings.LowerQuantile, settings.UpperQuantile},
		"edge_policy":    settings.EdgePolicy,
	})
}

func (s *Server) handleGetPrediction(c *gin.Context) {
	rec, err := s.predictions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListPredictions(c *gin.Context) {
	limit, ok := s.limit(c, 50)
	if !ok {
		return
	}
	records, err := s.predictions.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list predictions")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list predictions", "")
		return
	}
	if records == nil {
		records = []*domain.PredictionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "predictions": records})
}

func (s *Server) handleRecordOutcome(c *gin.Context) {
	if s.outcomes == nil {
		s.unavailable(c)
		return
	}

	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	rec, err := s.predictions.Get(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	outcome, err := feedback.NewOutcome(rec, *req.ObservedValue, s.predictions.Predictor().Settings().DeclineMargin, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.outcomes.Save(ctx, outcome); err != nil {
		s.logger.WithError(err).WithField("prediction_id", rec.ID).Error("Failed to save outcome")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to save outcome", "")
		return
	}
	metrics.OutcomeRecorded(outcome.Covered())

	s.logger.WithFields(logrus.Fields{
		"prediction_id":  rec.ID,
		"observed_value": outcome.ObservedValue,
		"covered":        outcome.Covered(),
	}).Info("Outcome recorded")

	c.JSON(http.StatusCreated, gin.H{
		"outcome":  outcome,
		"covered":  outcome.Covered(),
		"declined": outcome.Declined(),
	})
}

func (s *Server) handleCoverage(c *gin.Context) {
	if s.outcomes == nil {
		s.unavailable(c)
		return
	}

	limit, ok := s.limit(c, 1000)
	if !ok {
		return
	}

	outcomes, err := s.outcomes.List(c.Request.Context(), limit, 0)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list outcomes")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list outcomes", "")
		return
	}
	c.JSON(http.StatusOK, feedback.Coverage(outcomes))
}

// limit parses the optional ?limit query parameter. Values above
// maxListLimit are clamped.
func (s *Server) limit(c *gin.Context, def int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		s.fail(c, domain.NewValidationError("limit", "limit must be a positive integer", v))
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

// badRequest answers a body that could not be decoded.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.respondError(c, http.StatusUnprocessableEntity, domain.ErrInvalidInput, "Malformed request body", err.Error())
}

func (s *Server) unavailable(c *gin.Context) {
	s.respondError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "Outcome feedback store is not configured", "")
}

// fail maps an error from the prediction core onto an HTTP response.
func (s *Server) fail(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	message := "Prediction failed"

	switch code {
	case domain.ErrValidation:
		status = http.StatusUnprocessableEntity
		message = "Invalid patient record"
	case domain.ErrResourceAbsent:
		status = http.StatusNotFound
		message = "Resource not found"
	case domain.ErrUncalibrated:
		message = "Model is not calibrated"
	case domain.ErrComputation:
		message = "Imputation failed"
	}

	if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		status = http.StatusGatewayTimeout
		message = "Request timed out"
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error(message)
	}
	s.respondError(c, status, code, message, err.Error())
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.RequestIDKey)))
}
