package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SecureHeaders stamps browser protection headers on every response.
// An empty field suppresses the matching header, and DevMode drops the
// restrictive policies so local frontend tooling keeps working.
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	// ContentSecurityPolicy overrides the built-in policy when set.
	ContentSecurityPolicy string

	XFrameOptions       string
	XContentTypeOptions string
	XSSProtection       string
	ReferrerPolicy      string
	PermissionsPolicy   string

	DevMode bool
}

// DefaultSecureHeaders returns the production profile: two-year HSTS,
// framing denied and a policy that admits the refresh WebSocket.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            63072000,
		HSTSIncludeSubdomains: true,
		HSTSPreload:           true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		XSSProtection:         "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// Handler applies the configured headers. WebSocket upgrade requests
// pass through untouched because the handshake response never reaches
// a browser document context.
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		setHeader(h, "X-Frame-Options", sh.XFrameOptions)
		setHeader(h, "X-Content-Type-Options", sh.XContentTypeOptions)
		setHeader(h, "X-XSS-Protection", sh.XSSProtection)
		setHeader(h, "Referrer-Policy", sh.ReferrerPolicy)
		setHeader(h, "Strict-Transport-Security", sh.hstsValue(r))
		setHeader(h, "Content-Security-Policy", sh.cspValue())
		setHeader(h, "Permissions-Policy", sh.permissionsValue())

		next.ServeHTTP(w, r)
	})
}

func setHeader(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
}

// hstsValue builds the Strict-Transport-Security header. DevMode forces
// it onto plain HTTP responses so the header can be exercised without a
// TLS listener.
func (sh *SecureHeaders) hstsValue(r *http.Request) string {
	if sh.HSTSMaxAge <= 0 || (r.TLS == nil && !sh.DevMode) {
		return ""
	}
	value := fmt.Sprintf("max-age=%d", sh.HSTSMaxAge)
	if sh.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	if sh.HSTSPreload {
		value += "; preload"
	}
	return value
}

func (sh *SecureHeaders) cspValue() string {
	if sh.ContentSecurityPolicy != "" {
		return sh.ContentSecurityPolicy
	}
	if sh.DevMode {
		return ""
	}
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"font-src 'self' data:",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

func (sh *SecureHeaders) permissionsValue() string {
	if sh.PermissionsPolicy != "" {
		return sh.PermissionsPolicy
	}
	if sh.DevMode {
		return ""
	}
	return strings.Join([]string{
		"accelerometer=()",
		"camera=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
		"interest-cohort=()",
	}, ", ")
}

// AuditLog records an entry pair around every portal request. Logins
// and report exports both pass through here, so each access to student
// data is traceable by request ID.
func AuditLog(logger *slog.Logger, portal string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			began := time.Now()

			logger.InfoContext(ctx, "portal access",
				"event_type", "api_access",
				"portal", portal,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.Query().Encode(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			aw := &auditWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(aw, r)

			logger.InfoContext(ctx, "portal response",
				"event_type", "api_response",
				"portal", portal,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.code,
				"duration", time.Since(began).String(),
			)
		})
	}
}

// auditWriter pins the first status code written, including the
// implicit 200 from a bare Write.
type auditWriter struct {
	http.ResponseWriter
	code int
	sent bool
}

func (w *auditWriter) WriteHeader(code int) {
	if !w.sent {
		w.code = code
		w.sent = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *auditWriter) Write(b []byte) (int, error) {
	w.sent = true
	return w.ResponseWriter.Write(b)
}
