// Package errors provides structured error types for the logtriage pipeline.
//
// This package follows Go best practices for error handling:
// - Sentinel errors for type checking with errors.Is()
// - Error wrapping with context using fmt.Errorf("%w", err)
// - Structured error types for detailed information
// - Error codes for machine-readable categorization
//
// Error code ranges:
// - 1xxx: Configuration and input errors
// - 2xxx: Incident descriptor errors
// - 3xxx: Query window errors
// - 4xxx: Log source adapter errors
// - 5xxx: Record normalization errors
// - 9xxx: General errors
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error identifier.
type ErrorCode string

// Configuration and input error codes (1xxx)
const (
	ErrCodeConfigInvalid    ErrorCode = "TRIAGE_1001"
	ErrCodeConfigValidation ErrorCode = "TRIAGE_1002"
)

// Incident descriptor error codes (2xxx)
const (
	ErrCodeIncidentFileNotFound ErrorCode = "TRIAGE_2001"
	ErrCodeIncidentMalformed    ErrorCode = "TRIAGE_2002"
	ErrCodeIncidentFieldMissing ErrorCode = "TRIAGE_2003"
)

// Query window error codes (3xxx)
const (
	ErrCodeWindowInverted   ErrorCode = "TRIAGE_3001"
	ErrCodeWindowNoResource ErrorCode = "TRIAGE_3002"
	ErrCodeWindowBadBounds  ErrorCode = "TRIAGE_3003"
)

// Log source adapter error codes (4xxx)
const (
	ErrCodeAdapterUnavailable   ErrorCode = "TRIAGE_4001"
	ErrCodeAdapterQuotaExceeded ErrorCode = "TRIAGE_4002"
	ErrCodeAdapterAuthFailed    ErrorCode = "TRIAGE_4003"
)

// Record normalization error codes (5xxx)
const (
	ErrCodeRecordParseFailed ErrorCode = "TRIAGE_5001"
)

// General error codes (9xxx)
const (
	ErrCodeUnknown ErrorCode = "TRIAGE_9999"
)

// Sentinel errors for type checking with errors.Is()
var (
	// Configuration errors
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrConfigValidation = errors.New("configuration validation failed")

	// Incident descriptor errors
	ErrIncidentParse = errors.New("incident descriptor parse failed")

	// Query window errors
	ErrInvalidWindow = errors.New("invalid query window")

	// Adapter errors
	ErrAdapter      = errors.New("log source adapter failed")
	ErrAdapterQuota = errors.New("log source quota exceeded")
	ErrAdapterAuth  = errors.New("log source authentication failed")

	// Record errors
	ErrRecordParse = errors.New("record parse failed")
)

// TriageError is the base error type with structured information.
type TriageError struct {
	Code        ErrorCode
	Message     string
	Context     map[string]interface{}
	IsRetryable bool
	Cause       error
}

// Error implements the error interface.
func (e *TriageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TriageError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error's cause.
func (e *TriageError) Is(target error) bool {
	if e.Cause != nil {
		return errors.Is(e.Cause, target)
	}
	return false
}

// WithContext adds context information to the error.
func (e *TriageError) WithContext(key string, value interface{}) *TriageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ToMap converts the error to a map for structured logging.
func (e *TriageError) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"error_code":   string(e.Code),
		"message":      e.Message,
		"is_retryable": e.IsRetryable,
	}
	if e.Context != nil {
		m["context"] = e.Context
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.Error()
	}
	return m
}

// Configuration error constructors

// NewConfigValidationError creates a configuration validation error.
func NewConfigValidationError(field string, value interface{}, reason string) *TriageError {
	return &TriageError{
		Code:        ErrCodeConfigValidation,
		Message:     fmt.Sprintf("validation failed for '%s': %s", field, reason),
		Cause:       ErrConfigValidation,
		IsRetryable: false,
		Context: map[string]interface{}{
			"field":  field,
			"value":  fmt.Sprintf("%v", value),
			"reason": reason,
		},
	}
}

// Incident descriptor error constructors

// NewIncidentFileError creates an error for an unreadable incident file.
func NewIncidentFileError(path string, cause error) *TriageError {
	return &TriageError{
		Code:        ErrCodeIncidentFileNotFound,
		Message:     fmt.Sprintf("cannot read incident file: %s", path),
		Cause:       errors.Join(ErrIncidentParse, cause),
		IsRetryable: false,
		Context: map[string]interface{}{
			"path": path,
		},
	}
}

// NewIncidentMalformedError creates an error for undecodable incident JSON.
func NewIncidentMalformedError(cause error) *TriageError {
	return &TriageError{
		Code:        ErrCodeIncidentMalformed,
		Message:     "incident descriptor is not valid JSON",
		Cause:       errors.Join(ErrIncidentParse, cause),
		IsRetryable: false,
		Context:     make(map[string]interface{}),
	}
}

// NewIncidentFieldError creates an error for a missing or invalid required field.
func NewIncidentFieldError(field string, reason string) *TriageError {
	return &TriageError{
		Code:        ErrCodeIncidentFieldMissing,
		Message:     fmt.Sprintf("incident field '%s' %s", field, reason),
		Cause:       ErrIncidentParse,
		IsRetryable: false,
		Context: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// Query window error constructors

// NewWindowInvertedError creates an error for a window whose start is after its end.
func NewWindowInvertedError(start, end string) *TriageError {
	return &TriageError{
		Code:        ErrCodeWindowInverted,
		Message:     fmt.Sprintf("window start %s is after end %s", start, end),
		Cause:       ErrInvalidWindow,
		IsRetryable: false,
		Context: map[string]interface{}{
			"start": start,
			"end":   end,
		},
	}
}

// NewWindowNoResourceError creates an error for a window with no resource identification.
func NewWindowNoResourceError() *TriageError {
	return &TriageError{
		Code:        ErrCodeWindowNoResource,
		Message:     "no resource identification: supply a resource type or an incident",
		Cause:       ErrInvalidWindow,
		IsRetryable: false,
		Context:     make(map[string]interface{}),
	}
}

// NewWindowBoundsError creates an error for bad window parameters.
func NewWindowBoundsError(field string, value interface{}, reason string) *TriageError {
	return &TriageError{
		Code:        ErrCodeWindowBadBounds,
		Message:     fmt.Sprintf("window parameter '%s' %s", field, reason),
		Cause:       ErrInvalidWindow,
		IsRetryable: false,
		Context: map[string]interface{}{
			"field":  field,
			"value":  fmt.Sprintf("%v", value),
			"reason": reason,
		},
	}
}

// Adapter error constructors

// NewAdapterError creates an error for a failed log source call.
func NewAdapterError(operation string, cause error) *TriageError {
	return &TriageError{
		Code:        ErrCodeAdapterUnavailable,
		Message:     fmt.Sprintf("log source operation '%s' failed", operation),
		Cause:       errors.Join(ErrAdapter, cause),
		IsRetryable: true,
		Context: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewAdapterQuotaError creates an error for an exhausted log source quota.
func NewAdapterQuotaError(operation string, cause error) *TriageError {
	return &TriageError{
		Code:        ErrCodeAdapterQuotaExceeded,
		Message:     fmt.Sprintf("log source quota exceeded during '%s'", operation),
		Cause:       errors.Join(ErrAdapterQuota, cause),
		IsRetryable: true,
		Context: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewAdapterAuthError creates an error for failed log source authentication.
func NewAdapterAuthError(project string, cause error) *TriageError {
	return &TriageError{
		Code:        ErrCodeAdapterAuthFailed,
		Message:     fmt.Sprintf("log source authentication failed for project %s", project),
		Cause:       errors.Join(ErrAdapterAuth, cause),
		IsRetryable: false,
		Context: map[string]interface{}{
			"project": project,
		},
	}
}

// Record error constructors

// NewRecordParseError creates an error for one malformed record. It is never
// fatal: the caller skips the record and counts the skip.
func NewRecordParseError(insertID string, reason string) *TriageError {
	return &TriageError{
		Code:        ErrCodeRecordParseFailed,
		Message:     fmt.Sprintf("failed to normalize record: %s", reason),
		Cause:       ErrRecordParse,
		IsRetryable: false,
		Context: map[string]interface{}{
			"insert_id": insertID,
			"reason":    reason,
		},
	}
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var triageErr *TriageError
	if errors.As(err, &triageErr) {
		return triageErr.IsRetryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var triageErr *TriageError
	if errors.As(err, &triageErr) {
		return triageErr.Code
	}
	return ErrCodeUnknown
}
