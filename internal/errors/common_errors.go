package errors

import "fmt"

// ErrorType labels the layer an internal failure came from.
type ErrorType string

const (
	ErrTypeSheets ErrorType = "SHEETS"
	ErrTypeConfig ErrorType = "CONFIG"
)

// AppError carries a typed internal failure up from the data layers.
// Unlike APIError it never reaches a client directly; the error handler
// classifies it before responding.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds a typed internal error around its cause.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// NewSheetsError marks a Google Sheets API failure.
func NewSheetsError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSheets, message, cause)
}

// NewConfigError marks bad or missing configuration, credentials included.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
