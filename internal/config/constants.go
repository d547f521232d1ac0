package config

import "time"

// Application constants shared by both portals
const (
	// Application Info
	AppName    = "ClassPulse"
	AppVersion = "1.2.0"

	// EnvPrefix is the prefix for all environment variables,
	// e.g. CLASSPULSE_SHEETS_SPREADSHEET_ID.
	EnvPrefix = "CLASSPULSE"

	// Worksheet titles inside the attendance spreadsheet
	DefaultClassLogWorksheet    = "Student class details"
	DefaultStudentDataWorksheet = "Student Data"
	DefaultProfilesWorksheet    = "Profile"
	DefaultSupalearnWorksheet   = "ForSupalearnID"

	// Login Rules
	MinNameFragment   = 4  // minimum student name letters required to confirm identity
	MonthFrom         = 4  // first selectable reporting month (April)
	MonthTo           = 12 // last selectable reporting month (December)
	SessionTokenBytes = 16

	// Network Timeouts
	SheetsFetchTimeout  = 30 * time.Second
	WarmupTimeout       = 2 * time.Minute
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Session Store
	DefaultSessionTTL  = 12 * time.Hour
	DefaultMaxSessions = 1000

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogsDir   = "logs"
)

// Route mount points. Each portal binary serves the same layout; which
// portal a route belongs to is decided by the binary, not the path.
const (
	APIBasePath       = "/api"
	HealthEndpoint    = "/health"
	VersionEndpoint   = "/version"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// Months returns the selectable reporting months in ascending order.
func Months() []int {
	months := make([]int, 0, MonthTo-MonthFrom+1)
	for m := MonthFrom; m <= MonthTo; m++ {
		months = append(months, m)
	}
	return months
}
