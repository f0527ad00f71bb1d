package models

import (
	"errors"
	"fmt"
)

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

// Predefined error codes for the client-side error taxonomy.
const (
	// Transport
	ErrorCodeTimeout ErrorCode = "timeout"
	ErrorCodeNetwork ErrorCode = "network_error"

	// Response shape
	ErrorCodeShape ErrorCode = "shape_error"

	// Local validation, before any request is issued
	ErrorCodeValidation ErrorCode = "validation_failed"

	// No resolvable token for an authenticated operation
	ErrorCodeAuth ErrorCode = "auth_error"

	// Backend reported success:false or a non-2xx status
	ErrorCodeBackend ErrorCode = "backend_error"
)

// APIError carries a machine-checkable code alongside the message.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error makes APIError implement the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, err error) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the error code from err, or "" when err is not an
// APIError.
func CodeOf(err error) ErrorCode {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsAuthError reports whether err means "no resolvable token".
func IsAuthError(err error) bool {
	return CodeOf(err) == ErrorCodeAuth
}

// IsValidationError reports whether err was raised by local input
// validation before any network call.
func IsValidationError(err error) bool {
	return CodeOf(err) == ErrorCodeValidation
}
