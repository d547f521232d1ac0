package middleware

import (
	"encoding/json"
	"net/http"
)

// Problem is the RFC 7807 body middleware writes when it rejects a
// request before the API error handler is reached.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Render writes the problem as application/problem+json.
func (p Problem) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// problemTypes maps the statuses middleware rejects with to their
// stable type URIs.
var problemTypes = map[int]string{
	http.StatusBadRequest:          "/errors/bad-request",
	http.StatusUnauthorized:        "/errors/unauthorized",
	http.StatusForbidden:           "/errors/forbidden",
	http.StatusNotFound:            "/errors/not-found",
	http.StatusMethodNotAllowed:    "/errors/method-not-allowed",
	http.StatusTooManyRequests:     "/errors/rate-limit-exceeded",
	http.StatusInternalServerError: "/errors/internal-server-error",
	http.StatusServiceUnavailable:  "/errors/service-unavailable",
	http.StatusGatewayTimeout:      "/errors/gateway-timeout",
}

// ProblemFromStatus builds a Problem for an HTTP status code.
func ProblemFromStatus(status int, detail, traceID string) Problem {
	problemType, ok := problemTypes[status]
	if !ok {
		problemType = "/errors/unknown"
	}
	return Problem{
		Type:   problemType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Trace:  traceID,
	}
}
