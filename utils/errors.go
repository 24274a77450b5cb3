package utils

import (
	"errors"
	"fmt"
	"net/http"

	"lifeline/models"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) ServiceError {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetail returns a copy carrying an extra detail entry.
func (e ServiceError) WithDetail(key string, value interface{}) ServiceError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// WithCause wraps the original error.
func (e ServiceError) WithCause(cause error) ServiceError {
	e.Cause = cause
	return e
}

// GetServiceError extracts a ServiceError anywhere in the chain.
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

func NewUnauthorizedError(message string) ServiceError {
	return NewServiceErrorWithStatus("AUTHENTICATION_ERROR", message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) ServiceError {
	return NewServiceErrorWithStatus(models.ErrCodeAuthorization, message, http.StatusForbidden)
}

func NewNotFoundError(resource string) ServiceError {
	return NewServiceErrorWithStatus("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewBadRequestError(message string) ServiceError {
	return NewServiceErrorWithStatus("BAD_REQUEST", message, http.StatusBadRequest)
}

func NewConflictError(message string) ServiceError {
	return NewServiceErrorWithStatus("CONFLICT", message, http.StatusConflict)
}

func NewInternalError(message string) ServiceError {
	return NewServiceErrorWithStatus(models.ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewDatabaseError(operation string, cause error) ServiceError {
	return NewServiceErrorWithStatus("DATABASE_ERROR", fmt.Sprintf("database %s failed", operation), http.StatusInternalServerError).WithCause(cause)
}

func NewServiceUnavailableError(message string) ServiceError {
	return NewServiceErrorWithStatus(models.ErrCodeExternal, message, http.StatusServiceUnavailable)
}

// Domain-specific error constructors
func NewContactNotFoundError() ServiceError {
	return NewNotFoundError("Emergency contact")
}

func NewInvalidIDError(what string) ServiceError {
	return NewBadRequestError(fmt.Sprintf("invalid %s ID", what))
}
