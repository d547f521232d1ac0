package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"classpulse/internal/config"
	apierrors "classpulse/internal/errors"
	"classpulse/internal/identity"
	"classpulse/internal/infrastructure"
	customMiddleware "classpulse/internal/middleware"
	"classpulse/internal/services"
	"classpulse/internal/sheets"
	handlers "classpulse/internal/transport/http"
	ws "classpulse/internal/websocket"
	"classpulse/pkg/contracts"
)

const (
	AppName = "ClassPulse - Spreadsheet-Backed Attendance Portals"

	// Portal kinds. Each binary serves exactly one.
	PortalTeacher = "teacher"
	PortalStudent = "student"
)

// Application is the composition root for one portal process. It owns
// the worksheet dataset, the session store for its portal kind, the
// WebSocket hub and the HTTP server.
type Application struct {
	Portal        string
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Hub           *ws.Hub
	Dataset       *services.Dataset
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	// Exactly one of these is set, matching Portal.
	TeacherService *services.TeacherService
	StudentService *services.StudentService

	teacherSessions *identity.Store[identity.TeacherSession]
	studentSessions *identity.Store[identity.StudentSession]
	runtimeMetrics  *infrastructure.SystemMetricsCollector
}

// NewApplication creates a portal application with dependency injection.
// portal must be PortalTeacher or PortalStudent.
func NewApplication(portal string) (*Application, error) {
	if portal != PortalTeacher && portal != PortalStudent {
		return nil, fmt.Errorf("unknown portal kind %q", portal)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("portal", portal),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Observability), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Portal:        portal,
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the worksheet source, the dataset and the
// portal's service in dependency order.
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.Hub = hub

	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
	}
	a.Metrics = metrics

	if a.Config.Observability.MetricsEnabled {
		collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
		if err != nil {
			a.Logger.Warn("runtime metrics unavailable", slog.String("error", err.Error()))
		} else {
			a.runtimeMetrics = collector
		}
	}

	source, err := a.buildWorksheetSource()
	if err != nil {
		return err
	}
	a.Dataset = services.NewDataset(source, a.Config.Sheets.SpreadsheetID, a.Config.Sheets.Worksheets, metrics, a.Logger)

	switch a.Portal {
	case PortalTeacher:
		a.teacherSessions = identity.NewStore[identity.TeacherSession](a.Config.Session.TTL, a.Config.Session.MaxActive, a.Logger)
		a.TeacherService = services.NewTeacherService(a.Dataset, a.teacherSessions, metrics, a.Logger)
		a.HealthService = services.NewHealthService(a.Portal, a.Dataset, a.teacherSessions, hub, a.Logger)
	case PortalStudent:
		a.studentSessions = identity.NewStore[identity.StudentSession](a.Config.Session.TTL, a.Config.Session.MaxActive, a.Logger)
		a.StudentService = services.NewStudentService(a.Dataset, a.studentSessions, metrics, a.Logger)
		a.HealthService = services.NewHealthService(a.Portal, a.Dataset, a.studentSessions, hub, a.Logger)
	}

	return nil
}

// buildWorksheetSource assembles the Google-backed, cache-fronted
// worksheet source. Credentials are mandatory; a portal without its
// spreadsheet has nothing to serve.
func (a *Application) buildWorksheetSource() (services.DataSource, error) {
	creds, err := sheets.LoadCredentials(sheets.CredentialsConfig{
		File:       a.Config.Sheets.CredentialsFile,
		Passphrase: a.Config.Sheets.CredentialsPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sheets credentials: %w", err)
	}

	google, err := sheets.NewGoogleSource(context.Background(), creds, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return sheets.NewCachedSource(google, sheets.NewCache(), a.Logger), nil
}

// setupRouter builds the route tree. The WebSocket route is registered
// before the main middleware group so nothing wraps its ResponseWriter.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the WebSocket upgrade;
	// neither wraps the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route registered before the full middleware group.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc(config.WebSocketEndpoint, a.handleWebSocket)

	// Everything else gets the full chain, ordered
	// RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit.
	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))

		secureHeaders := customMiddleware.DefaultSecureHeaders()
		secureHeaders.DevMode = a.isDevelopmentMode()
		r.Use(secureHeaders.Handler)

		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus scrape endpoint outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes mounts the /api surface for this portal.
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		// Inside Timeout so the recover runs in the handler goroutine.
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.ContentTypeValidator("application/json"))
		r.Use(validation.ValidateRequest)

		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount(config.HealthEndpoint, healthHandler.Routes())
		r.Get(config.VersionEndpoint, healthHandler.Version)

		audit := customMiddleware.AuditLog(a.Logger, a.Portal)
		switch a.Portal {
		case PortalTeacher:
			teacherHandler := handlers.NewTeacherHandler(a.TeacherService, validation, a.Logger, errorHandler)
			r.Mount("/teacher", audit(teacherHandler.Routes()))
		case PortalStudent:
			studentHandler := handlers.NewStudentHandler(a.StudentService, validation, a.Logger, errorHandler)
			r.Mount("/student", audit(studentHandler.Routes()))
		}

		dataHandler := handlers.NewDataHandler(a.Dataset, a.Hub, a.Logger, errorHandler)
		r.Mount("/data", dataHandler.Routes())

		r.Post("/logs", handlers.NewClientLogHandler(a.Logger, errorHandler).Handle)
	})
}

// getCORSConfig picks CORS origins for the current environment.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if a.isDevelopmentMode() {
		// Local frontend dev servers next to the portal.
		cfg.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		}
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", cfg.AllowedOrigins))
		return cfg
	}

	cfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}
	if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	}
	a.Logger.Info("CORS configured for production mode",
		slog.Any("allowed_origins", cfg.AllowedOrigins))

	return cfg
}

// isDevelopmentMode reports whether the process runs with development
// conveniences: localhost CORS and permissive WebSocket origins.
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}
	if env := os.Getenv("ENVIRONMENT"); env == "development" {
		return true
	}
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	return false
}

// createServer builds the http.Server around the router.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application. The server runs in a goroutine; a fatal
// listen error cancels the passed context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("portal", a.Portal),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if a.runtimeMetrics != nil {
		go a.runtimeMetrics.Start(ctx)
	}

	if a.Config.Sheets.WarmupOnStart {
		go a.warmUpWorksheets(ctx)
	}

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// warmUpWorksheets loads every worksheet once so the first login after
// boot does not pay the remote fetch. Failures are logged, not fatal;
// the failed worksheets are retried on first use.
func (a *Application) warmUpWorksheets(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, config.WarmupTimeout)
	defer cancel()

	start := time.Now()
	warmed, failed := a.Dataset.WarmUp(warmCtx)
	a.Logger.InfoContext(ctx, "worksheet warmup finished",
		slog.Int("warmed", len(warmed)),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(start)))
	if len(failed) > 0 {
		a.Logger.WarnContext(ctx, "worksheets failed to warm",
			slog.Any("worksheets", failed))
	}
}

// Stop drains the server and tears the subsystems down in dependency
// order, closing the log file last.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Stop()

	if a.runtimeMetrics != nil {
		a.runtimeMetrics.Stop()
	}

	if a.teacherSessions != nil {
		a.teacherSessions.Close()
	}
	if a.studentSessions != nil {
		a.studentSessions.Close()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	// Closed last so shutdown itself still reaches the log file.
	return infrastructure.CloseLogFile()
}

// Run starts the portal and blocks until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Context cancelled")
	}

	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and registers the client with
// the hub so it receives data:refreshed broadcasts.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := r.Header.Get("X-Request-ID")
	if reqID != "" {
		ctx = infrastructure.WithTraceID(ctx, reqID)
	} else {
		ctx = infrastructure.EnsureTraceID(ctx)
		reqID = infrastructure.GetTraceID(ctx)
	}
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// No origin means same-origin or a non-browser client.
			if origin == "" {
				return true
			}
			if a.isDevelopmentMode() {
				return true
			}
			for _, allowed := range a.getCORSConfig().AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			a.Logger.WarnContext(ctx, "WebSocket origin rejected",
				slog.String("origin", origin))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
			// The /ws route sits outside the render group, so the
			// rejection body is written directly.
			apierrors.WriteError(w, apierrors.NewWithDetails(
				status, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed", reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := ws.NewClientWithTrace(a.Hub, conn, reqID, a.Logger)
	a.Hub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}

// performStartupHealthCheck verifies the portal's working assumptions
// and reports the soft failures as warnings.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	if a.Config.Sheets.SpreadsheetID == "" {
		warnings = append(warnings, "no spreadsheet configured; logins will fail until CLASSPULSE_SHEETS_SPREADSHEET_ID is set")
	}

	// The log file's directory must be writable or file logging silently
	// degrades to console only.
	if dir := filepath.Dir(a.Config.Logging.FilePath); dir != "" && dir != "." {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("logs directory not writable: %s", dir))
		} else {
			os.Remove(testFile)
		}
	}

	if f := a.Config.Sheets.CredentialsFile; f != "" && !config.FileExists(f) {
		warnings = append(warnings, fmt.Sprintf("credentials file not found: %s", f))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
