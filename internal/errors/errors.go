package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the RaidScan Worker
 *
 * Field-level NotFound is NOT an error: an extractor that never matched
 * reports an absent value. Only the codes below abort or annotate a request.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorMalformedInput ErrorCode = "MALFORMED_INPUT"
	ErrorDownloadFailed ErrorCode = "DOWNLOAD_FAILED"

	// Catalog errors
	ErrorCatalogUnavailable   ErrorCode = "CATALOG_UNAVAILABLE"
	ErrorCatalogInconsistency ErrorCode = "CATALOG_INCONSISTENCY"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorInvalidConfig     ErrorCode = "INVALID_CONFIG"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err wraps a ProcessingError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost ProcessingError in err, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewMalformedInputError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorMalformedInput,
		Message:   "Input could not be decoded as an image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewDownloadFailedError(jobID string, url string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDownloadFailed,
		Message:   "Failed to fetch image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_url": url,
		},
		Cause: cause,
	}
}

func NewCatalogUnavailableError(jobID string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorCatalogUnavailable,
		Message:   "No boss catalog snapshot is loaded",
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewCatalogInconsistencyError(cp string, kept string, dropped string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorCatalogInconsistency,
		Message:   fmt.Sprintf("CP %s maps to both %q and %q; keeping %q", cp, kept, dropped, kept),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"cp":      cp,
			"kept":    kept,
			"dropped": dropped,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(field string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("Text recognition failed for field: %s", field),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field": field,
		},
		Cause: cause,
	}
}

func NewInvalidConfigError(message string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidConfig,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction record",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WithJob stamps the job id onto an error created below the job layer.
func (e *ProcessingError) WithJob(jobID string) *ProcessingError {
	if e.JobID == "" {
		e.JobID = jobID
	}
	return e
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
