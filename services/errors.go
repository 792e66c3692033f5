package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeTransport     ErrorType = "transport"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. A target without a Code matches every error of
// the same type; a target with a Code only matches that exact condition.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithDetail returns a copy of the error with an added detail. Sentinels are
// never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	out := *e
	out.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	out := *e
	out.Err = cause
	return &out
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func newCodedError(errType ErrorType, code, message string) *DomainError {
	e := NewDomainError(errType, message, nil)
	e.Code = code
	return e
}

var (
	// Configuration errors are raised before any network attempt and never retried.
	ErrConfiguration     = NewDomainError(ErrorTypeConfiguration, "configuration error", nil)
	ErrMissingCredential = newCodedError(ErrorTypeConfiguration, "missing_credential", "missing credential")
	ErrBaseURLRequired   = newCodedError(ErrorTypeConfiguration, "base_url_required", "base URL required")
	ErrUnknownProvider   = newCodedError(ErrorTypeConfiguration, "unknown_provider", "unknown provider")
	ErrURLNotAllowed     = newCodedError(ErrorTypeConfiguration, "url_not_allowed", "URL not allowed")

	// Validation Errors
	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyMessages    = newCodedError(ErrorTypeValidation, "empty_messages", "messages cannot be empty")
	ErrInvalidProvider  = newCodedError(ErrorTypeValidation, "invalid_provider", "invalid provider specified")
	ErrCredentialExists = newCodedError(ErrorTypeValidation, "credential_exists", "credential already exists")

	// Not Found Errors
	ErrCredentialNotFound = newCodedError(ErrorTypeNotFound, "credential_not_found", "credential not found")

	// Parse Errors
	ErrMalformedResponse = newCodedError(ErrorTypeParse, "malformed_response", "malformed provider response")

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = newCodedError(ErrorTypeInternal, "database_error", "database error")
)

// Error type checking helper functions

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return GetErrorType(err) == ErrorTypeConfiguration
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	return GetErrorType(err) == ErrorTypeParse
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// ConfigurationError builds a configuration error with a free-form message.
func ConfigurationError(message string) error {
	return NewDomainError(ErrorTypeConfiguration, message, nil)
}
