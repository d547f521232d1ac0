package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates the portal's on-disk layout. Everything is anchored at
// the executable directory, never the working directory, so the
// binaries behave the same whether launched from dev/ or dist/.
type Paths struct {
	ExecutableDir   string
	LogsDir         string
	ExportsDir      string
	CredentialsFile string
}

// GetPaths resolves the executable location, following symlinks, and
// derives the standard layout from it.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	dir := filepath.Dir(exe)
	return &Paths{
		ExecutableDir:   dir,
		LogsDir:         filepath.Join(dir, DefaultLogsDir),
		ExportsDir:      filepath.Join(dir, "exports"),
		CredentialsFile: filepath.Join(dir, "credentials.json"),
	}, nil
}

// EnsureDirectories creates the writable directories. It is idempotent.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.LogsDir, p.ExportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// GetLogPath returns the full path for a log file name.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetExportPath returns the full path for an exported report name.
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
