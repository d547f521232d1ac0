package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics exports Go runtime gauges: goroutine count, memory use
// and GC pauses.
type SystemMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcPause         metric.Float64Histogram
	processUptime   metric.Float64Gauge
}

// NewSystemMetrics registers the runtime instruments on the meter.
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	in := &instruments{meter: meter}

	sm := &SystemMetrics{
		goRoutines:      in.gauge("system_goroutines", "Number of active goroutines"),
		memoryUsage:     in.bytesGauge("system_memory_usage_bytes", "Memory usage in bytes"),
		memoryAllocated: in.bytesGauge("system_memory_allocated_bytes", "Memory allocated by Go runtime in bytes"),
		memorySystem:    in.bytesGauge("system_memory_system_bytes", "Memory obtained from the OS in bytes"),
		gcPause:         in.seconds("system_gc_pause_seconds", "Garbage collection pause duration"),
		processUptime:   in.secondsGauge("system_process_uptime_seconds", "Process uptime in seconds"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return sm, nil
}

// SystemStats is one sample of the runtime counters.
type SystemStats struct {
	GoRoutines      int64
	MemoryUsage     int64
	MemoryAllocated int64
	MemorySystem    int64
	GCCount         uint32
	LastGCPause     time.Duration
	CPUCount        int
	ProcessUptime   time.Duration
	Timestamp       time.Time
}

// Collect samples the runtime, records every gauge and returns the
// sample.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := &SystemStats{
		GoRoutines:      int64(runtime.NumGoroutine()),
		MemoryUsage:     int64(mem.Alloc),
		MemoryAllocated: int64(mem.TotalAlloc),
		MemorySystem:    int64(mem.Sys),
		GCCount:         mem.NumGC,
		LastGCPause:     time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:        runtime.NumCPU(),
		ProcessUptime:   time.Since(startTime),
		Timestamp:       time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.memoryAllocated.Record(ctx, stats.MemoryAllocated)
	sm.memorySystem.Record(ctx, stats.MemorySystem)
	sm.processUptime.Record(ctx, stats.ProcessUptime.Seconds())
	if stats.LastGCPause > 0 {
		sm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}
	return stats
}

// FormatStats renders the sample as a nested map keyed by subsystem,
// ready for structured logging.
func (stats *SystemStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"runtime": map[string]interface{}{
			"goroutines":       stats.GoRoutines,
			"memory_usage_mb":  stats.MemoryUsage / 1024 / 1024,
			"memory_alloc_mb":  stats.MemoryAllocated / 1024 / 1024,
			"memory_system_mb": stats.MemorySystem / 1024 / 1024,
			"gc_count":         stats.GCCount,
			"last_gc_pause_ms": stats.LastGCPause.Milliseconds(),
		},
		"system": map[string]interface{}{
			"cpu_count":      stats.CPUCount,
			"uptime_seconds": stats.ProcessUptime.Seconds(),
		},
		"timestamp": stats.Timestamp.Format(time.RFC3339),
	}
}

// SystemMetricsCollector samples the runtime gauges on a fixed interval
// for the lifetime of the process.
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector registers the runtime instruments and
// prepares a collector ticking at the given interval.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start samples once immediately and then on every tick until Stop is
// called or ctx ends. It blocks; run it on its own goroutine.
func (c *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.metrics.Collect(ctx, c.startTime)
	for {
		select {
		case <-ticker.C:
			c.metrics.Collect(ctx, c.startTime)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sampling loop. Call it at most once.
func (c *SystemMetricsCollector) Stop() {
	close(c.stopCh)
}

// GetCurrentStats records and returns a fresh sample outside the
// periodic loop.
func (c *SystemMetricsCollector) GetCurrentStats(ctx context.Context) *SystemStats {
	return c.metrics.Collect(ctx, c.startTime)
}
