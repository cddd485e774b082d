package shared

import "errors"

// DomainError is a coded failure that adapters wrap with %w and callers
// match with errors.Is
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string { return e.Message }

// Is matches any DomainError carrying the same code
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	return errors.As(target, &other) && other.Code == e.Code
}

// NewDomainError creates a coded error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	// ErrNotFound covers unknown rules, shifts, devices and roster days
	ErrNotFound = NewDomainError("NOT_FOUND", "not found")
	// ErrAlreadyExists is a duplicate registration (evaluator type, strategy name)
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "already exists")
	// ErrInvalidInput is malformed fixture, config or punch data
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "invalid input")
	// ErrUnauthorized is a credential that maps to no employee
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "credential not recognized")
	// ErrDeviceDisabled is a punch from a known but disabled terminal
	ErrDeviceDisabled = NewDomainError("DEVICE_DISABLED", "punch device is disabled")
)
