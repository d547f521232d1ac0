package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "classpulse/internal/errors"
	"classpulse/internal/identity"
	customMiddleware "classpulse/internal/middleware"
	"classpulse/internal/services"
	v1 "classpulse/pkg/contracts/api/v1"
)

// StudentHandler serves the student portal API. Students get the log and
// summary views plus export; there is no roster or profile route.
type StudentHandler struct {
	service      *services.StudentService
	validation   *customMiddleware.ValidationMiddleware
	query        *customMiddleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewStudentHandler creates a student portal handler.
func NewStudentHandler(service *services.StudentService, validation *customMiddleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *StudentHandler {
	return &StudentHandler{
		service:      service,
		validation:   validation,
		query:        customMiddleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "student")),
		errorHandler: errorHandler,
	}
}

// Routes returns the student portal routes.
func (h *StudentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/auth/login", h.Login)

	r.Route("/session/{token}", func(r chi.Router) {
		r.Use(h.TokenCtx)
		r.Get("/log", h.GetLog)
		r.Get("/summary", h.GetSummary)
		r.Get("/export", h.Export)
		r.Delete("/", h.Logout)
	})

	return r
}

// TokenCtx rejects requests whose session token parameter is missing or
// implausibly long before any store lookup happens.
func (h *StudentHandler) TokenCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("token", "Session token is required"))
			return
		}
		if len(token) > 64 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("token", "Invalid session token format"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login handles POST /api/auth/login for students.
func (h *StudentHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("student-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "student_handler.login",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/auth/login"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req v1.StudentLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "student login attempt",
		slog.String("request_id", reqID),
		slog.String("student_id", req.StudentID),
	)

	report, err := h.service.Login(ctx, identity.StudentCredentials{
		StudentID:    req.StudentID,
		NameFragment: req.NameFragment,
	})
	span.SetAttributes(
		attribute.Int64("request.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("request.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "student login failed",
			slog.String("request_id", reqID),
			slog.String("student_id", req.StudentID),
			slog.String("error", err.Error()),
		)
		h.handleServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}

// GetLog handles GET /api/session/{token}/log.
func (h *StudentHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	view, err := h.service.Log(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
		"count":  view.Log.RowCount(),
	})
}

// GetSummary handles GET /api/session/{token}/summary.
func (h *StudentHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	summary, err := h.service.Summary(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
		"count":  summary.Hours.RowCount(),
	})
}

// Export handles GET /api/session/{token}/export?format=csv|xlsx.
func (h *StudentHandler) Export(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	reqID := middleware.GetReqID(r.Context())

	format, ok := h.query.ValidateEnum(w, r, "format", []string{"csv", "xlsx"}, "csv")
	if !ok {
		return
	}

	var (
		name string
		data []byte
		err  error
	)
	if format == "xlsx" {
		name, data, err = h.service.ExportXLSX(r.Context(), token)
	} else {
		name, data, err = h.service.ExportCSV(r.Context(), token)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("request_id", reqID),
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrSourceUnavailable):
			h.handleServiceError(w, r, err)
		default:
			h.errorHandler.HandleError(w, r, apierrors.ExportError(err))
		}
		return
	}

	writeDownload(w, format, name, data)
}

// Logout handles DELETE /api/session/{token}.
func (h *StudentHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.service.Logout(r.Context(), token); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"message": "session closed",
	})
}

// handleServiceError maps the service sentinels onto the API error
// catalogue. The three login failure kinds stay distinct so the portal
// can tell the student which half of the credentials failed.
func (h *StudentHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrFragmentTooShort):
		h.errorHandler.HandleError(w, r, apierrors.ErrFragmentTooShort)
	case errors.Is(err, services.ErrStudentNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrStudentNotFound)
	case errors.Is(err, services.ErrNameMismatch):
		h.errorHandler.HandleError(w, r, apierrors.ErrNameMismatch)
	case errors.Is(err, services.ErrSessionNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrSessionNotFound)
	case errors.Is(err, services.ErrSourceUnavailable):
		h.errorHandler.HandleError(w, r, apierrors.SourceUnavailableError(err))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
