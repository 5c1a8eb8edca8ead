// Package errors defines the error taxonomy shared across the
// reconciliation service. Every error carries a category, a code, optional
// context, and a stack trace captured at creation time.
//
// The taxonomy maps to caller behavior: validation errors are never
// retried, not-found and unauthorized are indistinguishable at the API
// boundary, and reconciliation errors mark a session failed while the
// original cause is rethrown.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category groups errors by how callers should react to them.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryNotFound       Category = "not_found"
	CategoryUnauthorized   Category = "unauthorized"
	CategoryReconciliation Category = "reconciliation"
	CategoryStorage        Category = "storage"
	CategoryConfiguration  Category = "configuration"
	CategoryInternal       Category = "internal"
)

// Code identifies the specific failure within a category.
type Code string

const (
	// Validation codes
	CodeInvalidInput     Code = "invalid_input"
	CodeInvalidDateRange Code = "invalid_date_range"
	CodeMissingField     Code = "missing_field"
	CodeInvalidOperator  Code = "invalid_operator"
	CodeInvalidAction    Code = "invalid_action"

	// Not-found codes
	CodeSessionNotFound     Code = "session_not_found"
	CodeTransactionNotFound Code = "transaction_not_found"
	CodeRuleNotFound        Code = "rule_not_found"

	// Unauthorized codes
	CodeNotOwner Code = "not_owner"

	// Reconciliation codes
	CodeMatchingFailed    Code = "matching_failed"
	CodeCancelled         Code = "cancelled"
	CodeIllegalTransition Code = "illegal_transition"

	// Storage codes
	CodeQueryFailed Code = "query_failed"
	CodeWriteFailed Code = "write_failed"

	// Configuration codes
	CodeInvalidConfig Code = "invalid_config"

	// Internal codes
	CodeUnexpected Code = "unexpected_error"
)

// ServiceError is the base error type for all application errors.
type ServiceError struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ServiceError) WithContext(key string, value interface{}) *ServiceError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// GetExitCode returns an appropriate process exit code for the error
func (e *ServiceError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryNotFound, CategoryUnauthorized:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryStorage, CategoryInternal:
		return 5
	default:
		return 1
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new ServiceError
func New(category Category, code Code, message string) *ServiceError {
	return &ServiceError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ServiceError context
func Wrap(err error, category Category, code Code, message string) *ServiceError {
	if err == nil {
		return nil
	}
	return &ServiceError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ValidationError creates a validation error for a malformed input field.
// These surface directly to the caller and are never retried.
func ValidationError(code Code, field string, value interface{}) *ServiceError {
	return New(CategoryValidation, code, fmt.Sprintf("invalid value for '%s': %v", field, value)).
		WithContext("field", field).
		WithContext("value", value)
}

// NotFoundError creates an error for a missing resource
func NotFoundError(code Code, resource, id string) *ServiceError {
	return New(CategoryNotFound, code, fmt.Sprintf("%s not found: %s", resource, id)).
		WithContext("resource", resource).
		WithContext("id", id)
}

// UnauthorizedError creates an error for a resource owned by a different
// user. At the API boundary it is rendered identically to NotFoundError so
// resource existence does not leak; the category is kept for logging.
func UnauthorizedError(resource, id, userID string) *ServiceError {
	return New(CategoryUnauthorized, CodeNotOwner,
		fmt.Sprintf("%s %s does not belong to user", resource, id)).
		WithContext("resource", resource).
		WithContext("id", id).
		WithContext("user_id", userID)
}

// MatchingError wraps a failure raised during an automated matching pass.
// The session transitions to failed and the error is rethrown, never
// swallowed.
func MatchingError(operation string, err error) *ServiceError {
	return Wrap(err, CategoryReconciliation, CodeMatchingFailed,
		fmt.Sprintf("matching failed during %s", operation)).
		WithContext("operation", operation)
}

// CancelledError marks an automated pass interrupted by its context
func CancelledError(sessionID string, err error) *ServiceError {
	return Wrap(err, CategoryReconciliation, CodeCancelled,
		fmt.Sprintf("reconciliation cancelled for session %s", sessionID)).
		WithContext("session_id", sessionID)
}

// StorageError wraps a store-level failure
func StorageError(code Code, operation string, err error) *ServiceError {
	return Wrap(err, CategoryStorage, code,
		fmt.Sprintf("storage operation %s failed", operation)).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration error
func ConfigurationError(setting string, value interface{}) *ServiceError {
	return New(CategoryConfiguration, CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for '%s': %v", setting, value)).
		WithContext("setting", setting).
		WithContext("value", value)
}

// IsCategory reports whether err is a ServiceError of the given category
func IsCategory(err error, category Category) bool {
	se, ok := AsServiceError(err)
	return ok && se.Category == category
}

// AsServiceError extracts a ServiceError from an error chain
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error unless it is already a ServiceError
func WrapIfNeeded(err error, category Category, code Code, message string) *ServiceError {
	if err == nil {
		return nil
	}
	if se, ok := AsServiceError(err); ok {
		return se
	}
	return Wrap(err, category, code, message)
}
