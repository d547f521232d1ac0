package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs. Generic ones first, then the login and worksheet
// specific types the portal frontends branch on.
const (
	TypeValidation   = "/errors/validation"
	TypeNotFound     = "/errors/not-found"
	TypeUnauthorized = "/errors/unauthorized"
	TypeRateLimit    = "/errors/rate-limit"
	TypeInternal     = "/errors/internal"
	TypeServiceDown  = "/errors/service-unavailable"
	TypeTimeout      = "/errors/timeout"

	TypeCredentialsNoMatch = "/errors/login/invalid-credentials"
	TypeStudentNotFound    = "/errors/login/student-not-found"
	TypeNameMismatch       = "/errors/login/name-mismatch"
	TypeSessionNotFound    = "/errors/session/not-found"
	TypeSourceUnavailable  = "/errors/sheets/unavailable"
)

// typeByCode maps catalogue error codes onto problem types. Codes
// missing here respond as TypeInternal.
var typeByCode = map[string]string{
	"VALIDATION_FAILED":   TypeValidation,
	"INVALID_REQUEST":     TypeValidation,
	"FRAGMENT_TOO_SHORT":  TypeValidation,
	"NOT_FOUND":           TypeNotFound,
	"PROFILE_NOT_FOUND":   TypeNotFound,
	"INVALID_CREDENTIALS": TypeCredentialsNoMatch,
	"STUDENT_NOT_FOUND":   TypeStudentNotFound,
	"NAME_MISMATCH":       TypeNameMismatch,
	"SESSION_NOT_FOUND":   TypeSessionNotFound,
	"SOURCE_UNAVAILABLE":  TypeSourceUnavailable,
}

// ErrorHandler turns errors into RFC 7807 responses and logs them with
// the request context attached.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler returns a handler bound to the logger. includeStack
// adds stack traces to response bodies and belongs in development only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs the error and responds with its problem document.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r).WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", currentStack())
	}
	render.Render(w, r, problem)
}

// ErrorToProblem picks the problem document for an error. Catalogued
// APIErrors carry their own status and code; anything else is
// classified by shape.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	// A cancelled or timed-out fetch is a timeout, not a crash.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.catalogProblem(apiErr, r)
	}
	return classifyProblem(err, r.URL.Path)
}

// catalogProblem renders a catalogued APIError, keeping its code and
// details visible as extensions.
func (h *ErrorHandler) catalogProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType, ok := typeByCode[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType,
		http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// classifyProblem maps raw errors that never passed through the service
// layer. The substring checks cover the usual suspects from the Sheets
// client and the session store.
func classifyProblem(err error, instance string) *ProblemDetails {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", msg, instance)

	case strings.Contains(msg, "credentials"):
		return NewProblemDetails(http.StatusUnauthorized, TypeUnauthorized,
			"Unauthorized", "Authentication required to access this resource", instance)

	// The Sheets API reports read quota exhaustion as a quota error.
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "Quota exceeded"):
		return NewProblemDetails(http.StatusTooManyRequests, TypeRateLimit,
			"Rate Limit Exceeded", "Too many requests. Please try again later.", instance).
			WithExtension("retry_after", 60)

	case strings.Contains(msg, "unavailable"):
		return NewProblemDetails(http.StatusServiceUnavailable, TypeServiceDown,
			"Service Unavailable", msg, instance)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred while processing your request", instance)
	}
}

// HandlePanic responds to a recovered panic with a 500 problem document
// and logs the stack.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path).
		WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", currentStack())
	}
	render.Render(w, r, problem)
}

// RecoveryMiddleware converts handler panics into HandlePanic responses.
// Mounted inside the request timeout, it is what keeps a panicking
// handler goroutine from taking the process down.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					handler.HandlePanic(w, r, recovered)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NotFound responds 404 for routes outside the API surface.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

// MethodNotAllowed responds 405 when the route exists but the method is
// wrong.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func currentStack() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
