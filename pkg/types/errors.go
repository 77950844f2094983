package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypePrecondition  ErrorType = "precondition_failed"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
)

// RegistryError represents a structured error in the data registry
type RegistryError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *RegistryError {
	return &RegistryError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(code, message string) *RegistryError {
	return &RegistryError{Type: ErrorTypeAuthorization, Code: code, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *RegistryError {
	return &RegistryError{Type: ErrorTypeNotFound, Code: code, Message: message}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *RegistryError {
	return &RegistryError{Type: ErrorTypeConflict, Code: code, Message: message}
}

// NewPreconditionError creates a new precondition-failed error
func NewPreconditionError(code, message string) *RegistryError {
	return &RegistryError{Type: ErrorTypePrecondition, Code: code, Message: message}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *RegistryError {
	return &RegistryError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// NewExternalError creates a new external-collaborator error
func NewExternalError(code, message string, cause error) *RegistryError {
	return &RegistryError{Type: ErrorTypeExternal, Code: code, Message: message, Cause: cause}
}

// IsErrorType reports whether err is a RegistryError of the given type
func IsErrorType(err error, t ErrorType) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Type == t
	}
	return false
}

// ErrorCode returns the registry error code of err, or "" if err is
// not a RegistryError.
func ErrorCode(err error) string {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Common error codes
const (
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeUnauthorizedConsumer    = "UNAUTHORIZED_CONSUMER"
	ErrCodeUnauthorizedVerifier    = "UNAUTHORIZED_VERIFIER"
	ErrCodeAlreadyRegistered       = "ALREADY_REGISTERED"
	ErrCodeRecordAlreadyExists     = "RECORD_ALREADY_EXISTS"
	ErrCodePaymentAlreadyProcessed = "PAYMENT_ALREADY_PROCESSED"
	ErrCodeProducerNotFound        = "PRODUCER_NOT_FOUND"
	ErrCodeRecordNotFound          = "RECORD_NOT_FOUND"
	ErrCodeDidNotFound             = "DID_NOT_FOUND"
	ErrCodeRecordNotActive         = "RECORD_NOT_ACTIVE"
	ErrCodeConsentNotAllowed       = "CONSENT_NOT_ALLOWED"
	ErrCodePaymentNotVerified      = "PAYMENT_NOT_VERIFIED"
	ErrCodeInsufficientBalance     = "INSUFFICIENT_BALANCE"
	ErrCodeBelowMinimumWithdraw    = "BELOW_MINIMUM_WITHDRAW"
	ErrCodeInsufficientAllowance   = "INSUFFICIENT_ALLOWANCE"
	ErrCodeInvalidConsumer         = "INVALID_CONSUMER"
	ErrCodeInvalidProducer         = "INVALID_PRODUCER"
	ErrCodeInvalidParameter        = "INVALID_PARAMETER"
	ErrCodeInvalidInput            = "INVALID_INPUT"
	ErrCodeInternalError           = "INTERNAL_ERROR"
	ErrCodeExternalError           = "EXTERNAL_ERROR"
)
