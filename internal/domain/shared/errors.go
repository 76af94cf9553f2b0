package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound       = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation     = NewDomainError("VALIDATION", "Invalid input provided")
	ErrInfrastructure = NewDomainError("INFRASTRUCTURE", "External collaborator failed")
	ErrConsistency    = NewDomainError("CONSISTENCY", "Required reference data is missing")
	ErrInvalidState   = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// NewValidationError creates a VALIDATION error with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrValidation.Code, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NOT_FOUND error with a formatted message
func NewNotFoundError(format string, args ...any) *DomainError {
	return NewDomainError(ErrNotFound.Code, fmt.Sprintf(format, args...))
}

// NewInfrastructureError creates an INFRASTRUCTURE error with a formatted message
func NewInfrastructureError(format string, args ...any) *DomainError {
	return NewDomainError(ErrInfrastructure.Code, fmt.Sprintf(format, args...))
}

// NewConsistencyError creates a CONSISTENCY error with a formatted message
func NewConsistencyError(format string, args ...any) *DomainError {
	return NewDomainError(ErrConsistency.Code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}
