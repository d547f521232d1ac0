// Package services implements the business logic layer of the ClassPulse
// portals. It sits between the HTTP handlers and the worksheet source,
// so matching, merging and aggregation rules live in one testable place.
//
// # Services
//
//	- Dataset: loads the configured worksheets and turns them into
//	  relations; owns cache invalidation and warmup.
//	- TeacherService: teacher login, session views (log, summary,
//	  students, profile), exports and logout.
//	- StudentService: student login, log and hours views, export.
//	- HealthService: health, readiness, liveness and version payloads.
//
// # Session semantics
//
// Login derives every view once, from the rows the matcher authorized,
// and stores the result as an immutable session value. Later worksheet
// changes are only visible after a refresh followed by a new login;
// open sessions keep serving their snapshot.
//
// # Error handling
//
// Services return the sentinel errors in errors.go. Handlers translate
// them into API errors; the four login failure kinds (unavailable
// source, invalid credentials, unknown student, name mismatch) stay
// distinct all the way to the client.
package services
