// Package app wires configuration, logging, the worksheet dataset,
// sessions, services and the HTTP server into one runnable portal.
//
// # Portals
//
// ClassPulse ships as two binaries that share this package. Each process
// serves exactly one portal kind:
//
//   - PortalTeacher: login by teacher ID and password, month-scoped class
//     log, summary, students, profile and exports
//   - PortalStudent: login by student ID and a name fragment, personal
//     class log, per-subject summary and exports
//
// The portal kind decides which session store and service are built and
// which routes are mounted under /api; everything else (health probes,
// data refresh, client log sink, WebSocket hub) is identical.
//
// # Lifecycle
//
// NewApplication loads configuration, then brings up logging and
// observability, the Google credentials and cached worksheet source,
// the portal's session store and service, and finally the router and
// HTTP server. Nothing here calls os.Exit; construction and Run both
// report errors to main, which owns the exit code:
//
//	app, err := app.NewApplication(app.PortalTeacher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests up
// to the shutdown timeout, disconnects WebSocket clients, stops the
// session janitors and flushes the observability providers before the
// log file is closed.
package app
