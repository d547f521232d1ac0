package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"classpulse/internal/config"
)

const (
	ServiceName    = "classpulse"
	ServiceVersion = config.AppVersion
	MeterName      = "classpulse"
)

// OTelConfig selects which telemetry signals the portal emits and how
// they leave the process.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// DefaultOTelConfig enables Prometheus metrics and leaves tracing off,
// which is how the portals run outside of debugging sessions.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  false,
		SampleRatio:    1.0,
	}
}

// OTelConfigFrom maps the application observability section onto an
// OTelConfig.
func OTelConfigFrom(cfg config.ObservabilityConfig) *OTelConfig {
	out := DefaultOTelConfig()
	if cfg.ServiceName != "" {
		out.ServiceName = cfg.ServiceName
	}
	out.EnableMetrics = cfg.MetricsEnabled
	out.EnableTracing = cfg.TracingEnabled
	if cfg.SampleRate > 0 {
		out.SampleRatio = cfg.SampleRate
	}
	if !cfg.MetricsEnabled {
		out.MetricExporter = "none"
	}
	if !cfg.TracingEnabled {
		out.TraceExporter = "none"
	}
	return out
}

// OTelProviders bundles the active telemetry providers. Tracer and
// Meter are never nil; disabled signals get no-op implementations so
// callers never branch on nil.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel wires up tracing and metrics per the configuration and
// installs the W3C trace-context propagator.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()
	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := newResource(cfg)
	p := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		if err := p.setupTracing(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := p.setupMetrics(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	if p.Tracer == nil {
		p.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
	}
	if p.Meter == nil {
		p.Meter = metricnoop.NewMeterProvider().Meter(MeterName)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return p, nil
}

// newResource describes this process for exported telemetry.
func newResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

// setupTracing installs the span exporter and a ratio sampler. Only the
// stdout exporter is supported.
func (p *OTelProviders) setupTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.TraceExporter {
	case "none":
		return nil
	case "stdout":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	p.TracerProvider = tp
	p.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	p.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

// setupMetrics installs the Prometheus reader and the scrape handler
// the application mounts on /metrics.
func (p *OTelProviders) setupMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.MetricExporter {
	case "none":
		return nil
	case "prometheus":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.MeterProvider = mp
	p.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	p.PrometheusHTTP = promhttp.Handler()
	otel.SetMeterProvider(mp)

	p.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops the active providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID distinguishes restarts of the same host in
// exported telemetry.
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// BusinessMetrics holds the application instruments. The set covers the
// request path end to end: HTTP traffic, logins, worksheet fetches,
// sessions and report exports.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	LoginAttempts metric.Int64Counter
	LoginDuration metric.Float64Histogram

	SheetFetchesTotal  metric.Int64Counter
	SheetFetchDuration metric.Float64Histogram
	SheetRowsFetched   metric.Int64Counter
	SheetCacheHits     metric.Int64Counter
	SheetCacheMisses   metric.Int64Counter

	SessionsCreated metric.Int64Counter
	SessionsActive  metric.Int64UpDownCounter

	ExportsTotal   metric.Int64Counter
	ExportDuration metric.Float64Histogram

	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics registers every application instrument on the
// given meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	in := &instruments{meter: meter}

	m := &BusinessMetrics{
		HTTPRequestsTotal:   in.counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: in.seconds("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  in.upDown("http_active_requests", "Number of active HTTP requests"),

		LoginAttempts: in.counter("login_attempts_total", "Total number of login attempts by portal and outcome"),
		LoginDuration: in.seconds("login_duration_seconds", "Login processing duration in seconds"),

		SheetFetchesTotal:  in.counter("sheet_fetches_total", "Total number of worksheet fetches by outcome"),
		SheetFetchDuration: in.seconds("sheet_fetch_duration_seconds", "Worksheet fetch duration in seconds"),
		SheetRowsFetched:   in.counter("sheet_rows_fetched_total", "Total number of worksheet rows fetched"),
		SheetCacheHits:     in.counter("sheet_cache_hits_total", "Total number of worksheet cache hits"),
		SheetCacheMisses:   in.counter("sheet_cache_misses_total", "Total number of worksheet cache misses"),

		SessionsCreated: in.counter("sessions_created_total", "Total number of sessions created by portal"),
		SessionsActive:  in.upDown("sessions_active", "Number of active sessions"),

		ExportsTotal:   in.counter("exports_total", "Total number of report exports by format and outcome"),
		ExportDuration: in.seconds("export_duration_seconds", "Report export duration in seconds"),

		SystemErrors: in.counter("system_errors_total", "Total number of system errors"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// TraceIDFromContext returns the OpenTelemetry trace ID of the span in
// ctx, or "" when no valid span is active. It is used to stamp outbound
// notifications with the trace that caused them.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// AddSpanEvent attaches a named event to the active span. Map values
// outside the common scalar types are stringified.
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(spanAttrs(attributes)...))
}

// RecordError marks the active span failed and records err on it.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

func spanAttrs(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordLoginMetrics records one login attempt with its outcome label.
func RecordLoginMetrics(ctx context.Context, metrics *BusinessMetrics, portal, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("portal", portal),
		attribute.String("outcome", outcome),
	)
	metrics.LoginAttempts.Add(ctx, 1, attrs)
	metrics.LoginDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSheetFetchMetrics records one worksheet fetch. Row counts are
// only added for successful fetches.
func RecordSheetFetchMetrics(ctx context.Context, metrics *BusinessMetrics, worksheet string, rows int, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("worksheet", worksheet),
		attribute.String("outcome", outcomeOf(err)),
	)
	metrics.SheetFetchesTotal.Add(ctx, 1, attrs)
	metrics.SheetFetchDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil && rows > 0 {
		metrics.SheetRowsFetched.Add(ctx, int64(rows), metric.WithAttributes(
			attribute.String("worksheet", worksheet)))
	}
}

// RecordExportMetrics records one report export by format and outcome.
func RecordExportMetrics(ctx context.Context, metrics *BusinessMetrics, format string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("outcome", outcomeOf(err)),
	)
	metrics.ExportsTotal.Add(ctx, 1, attrs)
	metrics.ExportDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSessionCreated bumps the session counters for a fresh login.
func RecordSessionCreated(ctx context.Context, metrics *BusinessMetrics, portal string) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("portal", portal))
	metrics.SessionsCreated.Add(ctx, 1, attrs)
	metrics.SessionsActive.Add(ctx, 1, attrs)
}

// RecordSessionClosed lowers the active session gauge after expiry or
// logout.
func RecordSessionClosed(ctx context.Context, metrics *BusinessMetrics, portal string) {
	if metrics == nil {
		return
	}

	metrics.SessionsActive.Add(ctx, -1, metric.WithAttributes(
		attribute.String("portal", portal)))
}
