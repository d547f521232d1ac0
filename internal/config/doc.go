// Package config loads and validates the portal configuration.
//
// Settings come from three places. Environment variables win, a YAML
// config file fills what they left unset, and built-in defaults cover
// the rest.
//
// # Environment Variables
//
// Every variable is namespaced under CLASSPULSE_*:
//
//	CLASSPULSE_SERVER_PORT=8080
//	CLASSPULSE_SHEETS_SPREADSHEET_ID=1v3vnUaTr...
//	CLASSPULSE_SHEETS_CREDENTIALS_FILE=credentials.json
//	CLASSPULSE_LOGGING_LEVEL=info
//	CLASSPULSE_SESSION_TTL=12h
//
// The config file location itself can be overridden with CLASSPULSE_CONFIG;
// otherwise config.yaml and configs/config.yaml are probed.
//
// # Validation
//
// Load rejects configurations with an out-of-range port, non-positive
// timeouts or an empty CORS origin list, and silently normalizes
// unsupported logging format and output values.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For tests and tools that must not depend on the environment, Default()
// returns a fully populated configuration.
package config
