// Package http implements the HTTP request handlers for the ClassPulse
// portals. It is a thin layer between transport and business logic: handlers
// parse requests, call the service layer and format responses, and nothing
// else.
//
// # Handlers
//
// The package exposes one handler per surface:
//
//	TeacherHandler   - teacher login, session views, exports, logout
//	StudentHandler   - student login, log and summary views, exports, logout
//	DataHandler      - worksheet refresh and cache statistics
//	HealthHandler    - health, readiness, liveness, version, system stats
//	ClientLogHandler - log entries forwarded by the portal frontend
//
// Handlers decode the request contract from pkg/contracts/api/v1, hand
// it to their service with the request context, and render either a
// success envelope or a problem document. Anything beyond decode, call
// and render belongs in the service.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/invalid-credentials",
//	    "title": "INVALID_CREDENTIALS",
//	    "status": 401,
//	    "detail": "Invalid credentials or no data for this month",
//	    "instance": "/api/teacher/auth/login"
//	}
//
// Service sentinels (services.ErrInvalidCredentials, ErrSessionNotFound and
// friends) are mapped to their API errors in each handler's
// handleServiceError, so the wire format stays stable even when the service
// layer wraps errors with context.
//
// # Testing
//
// Handlers are tested with httptest against real services over an in-memory
// worksheet source, verifying status codes, problem documents and export
// headers.
package http
