package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"classpulse/internal/identity"
	"classpulse/pkg/contracts"

	ws "classpulse/internal/websocket"
)

// SessionStats is the slice of the session store the health service
// reads. Both portal stores satisfy it.
type SessionStats interface {
	Len() int
	Stats() identity.StoreStats
}

// HealthService answers the liveness, readiness and version probes for
// one portal.
type HealthService struct {
	portal    string
	dataset   *Dataset
	sessions  SessionStats
	hub       *ws.Hub
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the probe response envelope.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Portal    string                 `json:"portal"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is one dependency's contribution to readiness.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats is the operational snapshot served under /data/stats.
type SystemStats struct {
	UptimeSeconds    float64             `json:"uptime_seconds"`
	Portal           string              `json:"portal"`
	Cache            interface{}         `json:"cache"`
	Sessions         identity.StoreStats `json:"sessions"`
	WebSocketClients int                 `json:"websocket_clients"`
	GoVersion        string              `json:"go_version"`
	OS               string              `json:"os"`
	Arch             string              `json:"arch"`
}

// NewHealthService creates a health service for the named portal. The
// hub may be nil when the portal runs without WebSocket support.
func NewHealthService(portal string, dataset *Dataset, sessions SessionStats, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		portal:    portal,
		dataset:   dataset,
		sessions:  sessions,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns the overall health status.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Portal:    hs.portal,
	}
}

// ReadinessCheck reports whether every dependency can serve traffic.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Portal:    hs.portal,
		Services:  make(map[string]interface{}),
	}

	status.Services["source"] = hs.checkSourceHealth()
	status.Services["sessions"] = hs.checkSessionHealth()
	status.Services["websocket"] = hs.checkWebSocketHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck reports process liveness with runtime counters.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Portal:    hs.portal,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns the build and runtime identity of this portal.
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"api_version":  info.APIVersion,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"git_branch":   info.GitBranch,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"portal":       hs.portal,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// SystemStats returns cache, session and connection counters.
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Portal:        hs.portal,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.dataset != nil {
		stats.Cache = hs.dataset.Stats()
	}
	if hs.sessions != nil {
		stats.Sessions = hs.sessions.Stats()
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	return stats
}

// checkSourceHealth verifies the worksheet source is configured. Probes
// stay cheap: they never force a remote fetch.
func (hs *HealthService) checkSourceHealth() ServiceHealth {
	if hs.dataset == nil || hs.dataset.SpreadsheetID() == "" {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "no spreadsheet configured",
		}
	}
	stats := hs.dataset.Stats()
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d worksheets cached, hit rate %.2f", stats.Entries, stats.HitRate),
	}
}

// checkSessionHealth verifies the session store is accepting entries.
func (hs *HealthService) checkSessionHealth() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "session store not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d active sessions", hs.sessions.Len()),
	}
}

// checkWebSocketHealth reports hub connectivity. A portal without a hub
// is still ready.
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "ready",
			Message: "websocket disabled",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}
