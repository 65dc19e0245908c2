package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors raised by the prediction core
var (
	// ErrNotCalibrated is returned when a distribution is requested from a
	// regressor that retained no conformity scores.
	ErrNotCalibrated = errors.New("model not calibrated")
	// ErrNonInvertible is returned when a preprocessing branch has no inverse transform.
	ErrNonInvertible = errors.New("preprocessing transform is not invertible")
	// ErrModelNotLoaded is returned when no fitted pipeline is available.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrValidation     = "VALIDATION_ERROR"
	ErrUncalibrated   = "MODEL_NOT_CALIBRATED"
	ErrComputation    = "COMPUTATION_ERROR"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrResourceAbsent = "NOT_FOUND"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors collects every field failure of one record.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	var ve *ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}

// ErrorCode maps an error from the prediction core onto an API error code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsClientError(err):
		return ErrValidation
	case errors.Is(err, ErrNotCalibrated):
		return ErrUncalibrated
	case errors.Is(err, ErrNonInvertible):
		return ErrComputation
	case errors.Is(err, ErrNotFound):
		return ErrResourceAbsent
	default:
		return ErrInternalServer
	}
}
