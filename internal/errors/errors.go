package errors

import (
	"encoding/json"
	"net/http"
)

// APIError is the catalogued form of a client-visible failure. The
// error code is stable across releases; the message is what the portal
// frontends show verbatim.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError reports one failed request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors bundles the failed fields of one request.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New builds an APIError from its parts.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails builds an APIError carrying a details payload.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// The error catalogue. Login failures stay deliberately distinct so the
// portals can tell the user which half of the credentials was wrong.
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrFragmentTooShort = New(http.StatusBadRequest, "FRAGMENT_TOO_SHORT", "Enter at least 4 letters from your name")

	ErrInvalidCredentials = New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials or no data for this month")
	ErrStudentNotFound    = New(http.StatusUnauthorized, "STUDENT_NOT_FOUND", "Student ID not found")
	ErrNameMismatch       = New(http.StatusUnauthorized, "NAME_MISMATCH", "Name mismatch, enter correct letters from your name")
	ErrSessionNotFound    = New(http.StatusUnauthorized, "SESSION_NOT_FOUND", "Session not found or expired")

	ErrNotFound        = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrProfileNotFound = New(http.StatusNotFound, "PROFILE_NOT_FOUND", "No profile recorded for this teacher")

	ErrSourceUnavailable = New(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "Worksheet data is currently unavailable")
)

// InvalidRequestWithError reports a malformed request with the decode
// failure as detail.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation reports a single failed field.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports every failed field of a request at once.
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationErrors{Errors: errors})
}

// SourceUnavailableError reports a worksheet backend failure with the
// cause as detail.
func SourceUnavailableError(err error) *APIError {
	return NewWithDetails(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE",
		"Worksheet data is currently unavailable", err.Error())
}

// ExportError reports a report generation failure with the cause as
// detail.
func ExportError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "EXPORT_FAILED",
		"Export generation failed", err.Error())
}

// ErrorResponse is the envelope WriteError wraps an APIError in.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError for the response envelope.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// WriteError responds with the enveloped error and its status code. Code
// outside the chi render path uses this directly.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
