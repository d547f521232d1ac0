package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete portal configuration. Values come from the
// environment first and an optional YAML file second; see Load.
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Sheets        SheetsConfig        `yaml:"sheets" envconfig:"SHEETS"`
	Session       SessionConfig       `yaml:"session" envconfig:"SESSION"`
	Security      SecurityConfig      `yaml:"security" envconfig:"SECURITY"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
	WebSocket     WebSocketConfig     `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig bounds the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SheetsConfig names the spreadsheet the portal serves and how to reach
// it. SpreadsheetID has no default: each deployment points at its own
// document.
type SheetsConfig struct {
	SpreadsheetID         string           `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile       string           `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	CredentialsPassphrase string           `yaml:"credentials_passphrase" envconfig:"CREDENTIALS_PASSPHRASE"`
	FetchTimeout          time.Duration    `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"30s"`
	WarmupOnStart         bool             `yaml:"warmup_on_start" envconfig:"WARMUP_ON_START" default:"true"`
	Worksheets            WorksheetsConfig `yaml:"worksheets" envconfig:"WORKSHEETS"`
}

// WorksheetsConfig holds the worksheet titles inside the spreadsheet.
type WorksheetsConfig struct {
	ClassLog    string `yaml:"class_log" envconfig:"CLASS_LOG" default:"Student class details"`
	StudentData string `yaml:"student_data" envconfig:"STUDENT_DATA" default:"Student Data"`
	Profiles    string `yaml:"profiles" envconfig:"PROFILES" default:"Profile"`
	Supalearn   string `yaml:"supalearn" envconfig:"SUPALEARN" default:"ForSupalearnID"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl" envconfig:"TTL" default:"12h"`
	MaxActive int           `yaml:"max_active" envconfig:"MAX_ACTIVE" default:"1000"`
}

// SecurityConfig controls CORS and request throttling.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig shapes the per-client token bucket.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig selects log level and destination. Format is always
// JSON; validate normalizes anything else back.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// ObservabilityConfig controls metrics and tracing.
type ObservabilityConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"classpulse"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	SampleRate     float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" default:"0.1"`
}

// WebSocketConfig sizes the upgrade buffers. Heartbeat timings are
// fixed by WebSocketPingPeriod and WebSocketPongWait.
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
}

// Load reads configuration from CLASSPULSE_* environment variables,
// fills remaining gaps from the YAML file if one is found, and
// validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		fromFile, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fromFile, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs lets the file fill only the fields the environment left
// empty; anything the environment set wins.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig
	fillString(&merged.Sheets.SpreadsheetID, fileConfig.Sheets.SpreadsheetID)
	fillString(&merged.Sheets.CredentialsFile, fileConfig.Sheets.CredentialsFile)
	fillString(&merged.Sheets.CredentialsPassphrase, fileConfig.Sheets.CredentialsPassphrase)
	fillString(&merged.Logging.FilePath, fileConfig.Logging.FilePath)
	if merged.Server.Port == 0 {
		merged.Server.Port = fileConfig.Server.Port
	}
	if len(merged.Security.AllowedOrigins) == 0 {
		merged.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	return merged
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"server read timeout", c.Server.ReadTimeout},
		{"server write timeout", c.Server.WriteTimeout},
		{"session ttl", c.Session.TTL},
		{"sheets fetch timeout", c.Sheets.FetchTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	// Structured logs are always JSON, to console, file, or both.
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "both", "file", "console":
	default:
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// configFilePath looks for the YAML file at the CLASSPULSE_CONFIG
// location first, then at the conventional relative locations.
func configFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	for _, location := range []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	} {
		if FileExists(location) {
			return location
		}
	}
	return ""
}

// Default returns the configuration the portals run with when nothing
// is set. It mirrors the struct tag defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Sheets: SheetsConfig{
			FetchTimeout:  SheetsFetchTimeout,
			WarmupOnStart: true,
			Worksheets: WorksheetsConfig{
				ClassLog:    DefaultClassLogWorksheet,
				StudentData: DefaultStudentDataWorksheet,
				Profiles:    DefaultProfilesWorksheet,
				Supalearn:   DefaultSupalearnWorksheet,
			},
		},
		Session: SessionConfig{
			TTL:       DefaultSessionTTL,
			MaxActive: DefaultMaxSessions,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Observability: ObservabilityConfig{
			ServiceName:    "classpulse",
			MetricsEnabled: true,
			TracingEnabled: false,
			SampleRate:     0.1,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}
