package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeProvider     ErrorType = "provider"
	ErrorTypeExhausted    ErrorType = "all_providers_failed"
	ErrorTypeCacheBackend ErrorType = "cache_backend"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType         `json:"type"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Cause     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// NewValidationError reports a malformed or duplicate request in a submitted
// batch. Never retried.
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

// NewConfigError reports an invalid orchestrator configuration
func NewConfigError(message string) *AppError {
	return NewAppError(ErrorTypeConfig, "CONFIG_ERROR", message)
}

// NewProviderError reports a single provider call failing or timing out
func NewProviderError(provider, message string) *AppError {
	return NewAppError(ErrorTypeProvider, "PROVIDER_ERROR", message).
		WithDetail("provider", provider)
}

// NewCacheBackendError reports the distributed cache tier being unreachable.
// Logged and non-fatal; callers fall back to the local tier.
func NewCacheBackendError(message string) *AppError {
	return NewAppError(ErrorTypeCacheBackend, "CACHE_BACKEND_ERROR", message)
}

// NewCancellationError reports a request dropped due to batch cancellation
func NewCancellationError(batchID string) *AppError {
	return NewAppError(ErrorTypeCancellation, "CANCELLED", "request dropped due to batch cancellation").
		WithDetail("batch_id", batchID)
}

// NewTimeoutError reports an operation exceeding its deadline
func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

// NewInternalError reports an unexpected internal failure
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// AllProvidersFailedError is returned when every eligible provider failed or
// was circuit-open for a request. Reasons holds the per-provider failures in
// priority order.
type AllProvidersFailedError struct {
	Reasons map[string]error `json:"-"`
}

// NewAllProvidersFailedError creates an exhaustion error from per-provider failures
func NewAllProvidersFailedError(reasons map[string]error) *AllProvidersFailedError {
	return &AllProvidersFailedError{Reasons: reasons}
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Reasons) == 0 {
		return "all providers failed: no providers configured"
	}
	parts := make([]string, 0, len(e.Reasons))
	for provider, err := range e.Reasons {
		parts = append(parts, fmt.Sprintf("%s: %v", provider, err))
	}
	return fmt.Sprintf("all providers failed: [%s]", strings.Join(parts, "; "))
}

// IsAllProvidersFailed checks if an error is a provider exhaustion error
func IsAllProvidersFailed(err error) bool {
	var apfErr *AllProvidersFailedError
	return errors.As(err, &apfErr)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}
