package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrNegativeLimit          = NewDomainError(ErrCodeValidation, "search limit cannot be negative")
	ErrMissingProjectID       = NewDomainError(ErrCodeValidation, "project id is required")
	ErrInvalidDetectionMethod = NewDomainError(ErrCodeValidation, "invalid detection method")
	ErrInvalidArchiveReason   = NewDomainError(ErrCodeValidation, "invalid archive reason")
	ErrBatchTooLarge          = NewDomainError(ErrCodeValidation, "batch exceeds maximum mutation count")
)

// Not found errors
var (
	ErrKnowledgeNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrGroupNotFound     = NewDomainError(ErrCodeNotFound, "duplicate group not found")
)

// Provider and store errors
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding dimensions do not match")
	ErrEmbeddingProvider = NewDomainError(ErrCodeProvider, "embedding generation failed")
	ErrStoreUnavailable  = NewDomainError(ErrCodeStore, "knowledge store operation failed")
)
