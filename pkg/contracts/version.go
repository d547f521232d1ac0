package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release version served by the version endpoint
	// and logged at startup.
	Version = "1.2.0"

	// APIVersion names the WebSocket message format. It moves
	// independently of releases, whenever the envelope changes shape.
	APIVersion = "v1"
)

// Stamped at build time via -ldflags "-X classpulse/pkg/contracts.GitCommit=...".
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

// VersionInfo bundles release, build and runtime identity for the
// version endpoint.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GitBranch    string `json:"git_branch"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo reports the identity of the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GitBranch:    GitBranch,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		APIVersion:   APIVersion,
	}
}

// GetFullVersionString renders a one-line identity for -version output.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("ClassPulse v%s (built: %s, commit: %s, go: %s, os: %s/%s)",
		info.Version, info.BuildTime, info.GitCommit, info.GoVersion, info.OS, info.Architecture)
}
