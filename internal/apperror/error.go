// internal/apperror/error.go

package apperror

import (
	"errors"
	"fmt"
)

type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// ExitCode i Stderr są ustawiane tylko dla ProcessExitError
	ExitCode int
	Stderr   string

	// Status jest ustawiany tylko dla APIError
	Status int
}

type ErrorType int

const (
	ConfigError ErrorType = iota
	ValidationError
	TunnelError
	SpawnError
	ProcessExitError
	TimeoutError
	InvalidHistoryPathError
	APIError
	CancelledError
)

var typeNames = map[ErrorType]string{
	ConfigError:             "config error",
	ValidationError:         "validation error",
	TunnelError:             "tunnel error",
	SpawnError:              "spawn error",
	ProcessExitError:        "process exit error",
	TimeoutError:            "timeout error",
	InvalidHistoryPathError: "invalid history path",
	APIError:                "api error",
	CancelledError:          "cancelled",
}

func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("error type %d", int(t))
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must abort the current operation.
func (e *AppError) Fatal() bool {
	return e.Type != InvalidHistoryPathError
}

func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// NewProcessExit builds the error for a child that exited with a non-zero code.
func NewProcessExit(binary string, code int, stderr string) *AppError {
	msg := fmt.Sprintf("%s exited with code %d", binary, code)
	if stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return &AppError{
		Type:     ProcessExitError,
		Message:  msg,
		ExitCode: code,
		Stderr:   stderr,
	}
}

// NewAPI builds the error for a non-2xx platform API response.
func NewAPI(status int, message string) *AppError {
	return &AppError{
		Type:    APIError,
		Message: fmt.Sprintf("HTTP %d: %s", status, message),
		Status:  status,
	}
}

// Is reports whether any AppError in err's chain has the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Err
	}
	return false
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
