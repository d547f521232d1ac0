package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, DefaultClassLogWorksheet, cfg.Sheets.Worksheets.ClassLog)
	assert.Equal(t, DefaultStudentDataWorksheet, cfg.Sheets.Worksheets.StudentData)
	assert.Equal(t, DefaultProfilesWorksheet, cfg.Sheets.Worksheets.Profiles)
	assert.Equal(t, DefaultSupalearnWorksheet, cfg.Sheets.Worksheets.Supalearn)
	assert.True(t, cfg.Sheets.WarmupOnStart)

	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 1000, cfg.Session.MaxActive)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.True(t, cfg.Security.RateLimit.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLASSPULSE_SERVER_PORT", "9191")
	t.Setenv("CLASSPULSE_SHEETS_SPREADSHEET_ID", "sheet-abc-123")
	t.Setenv("CLASSPULSE_SHEETS_WORKSHEETS_CLASS_LOG", "Attendance 2026")
	t.Setenv("CLASSPULSE_SESSION_TTL", "1h")
	t.Setenv("CLASSPULSE_SECURITY_ALLOWED_ORIGINS", "https://portal.example.com,https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "sheet-abc-123", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, "Attendance 2026", cfg.Sheets.Worksheets.ClassLog)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"https://portal.example.com", "https://admin.example.com"}, cfg.Security.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
sheets:
  spreadsheet_id: file-sheet-id
  credentials_file: /etc/classpulse/credentials.json
  credentials_passphrase: file-pass
server:
  port: 9999
`)
	require.NoError(t, os.WriteFile(path, content, 0644))
	t.Setenv("CLASSPULSE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	// File fills fields the environment left empty
	assert.Equal(t, "file-sheet-id", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, "/etc/classpulse/credentials.json", cfg.Sheets.CredentialsFile)
	assert.Equal(t, "file-pass", cfg.Sheets.CredentialsPassphrase)

	// Defaulted fields keep precedence over the file
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheets:\n  spreadsheet_id: file-sheet-id\n"), 0644))
	t.Setenv("CLASSPULSE_CONFIG", path)
	t.Setenv("CLASSPULSE_SHEETS_SPREADSHEET_ID", "env-sheet-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-sheet-id", cfg.Sheets.SpreadsheetID)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0644))
	t.Setenv("CLASSPULSE_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("CLASSPULSE_SERVER_PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "negative read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = -time.Second },
			wantErr: "read timeout must be positive",
		},
		{
			name:    "no origins",
			mutate:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "at least one allowed origin",
		},
		{
			name:    "zero session ttl",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantErr: "session ttl must be positive",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.Sheets.FetchTimeout = 0 },
			wantErr: "fetch timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestMergeConfigs(t *testing.T) {
	fileConfig := Config{}
	fileConfig.Sheets.SpreadsheetID = "from-file"
	fileConfig.Sheets.CredentialsPassphrase = "file-pass"
	fileConfig.Server.Port = 7070

	envConfig := Config{}
	envConfig.Sheets.CredentialsPassphrase = "env-pass"

	merged := mergeConfigs(fileConfig, envConfig)

	assert.Equal(t, "from-file", merged.Sheets.SpreadsheetID)
	assert.Equal(t, "env-pass", merged.Sheets.CredentialsPassphrase)
	assert.Equal(t, 7070, merged.Server.Port)
}

func TestMonths(t *testing.T) {
	months := Months()
	require.Len(t, months, 9)
	assert.Equal(t, MonthFrom, months[0])
	assert.Equal(t, MonthTo, months[len(months)-1])
	for i := 1; i < len(months); i++ {
		assert.Equal(t, months[i-1]+1, months[i])
	}
}
