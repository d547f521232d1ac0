package http

import (
	"errors"
	"fmt"
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

// TeacherHandler serves the teacher portal API: login, the session
// views, exports and logout.
type TeacherHandler struct {
	service      *services.TeacherService
	validation   *customMiddleware.ValidationMiddleware
	query        *customMiddleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewTeacherHandler creates a teacher portal handler.
func NewTeacherHandler(service *services.TeacherService, validation *customMiddleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *TeacherHandler {
	return &TeacherHandler{
		service:      service,
		validation:   validation,
		query:        customMiddleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "teacher")),
		errorHandler: errorHandler,
	}
}

// Routes returns the teacher portal routes.
func (h *TeacherHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/auth/login", h.Login)

	r.Route("/session/{token}", func(r chi.Router) {
		r.Use(h.TokenCtx)
		r.Get("/log", h.GetLog)
		r.Get("/summary", h.GetSummary)
		r.Get("/students", h.GetStudents)
		r.Get("/profile", h.GetProfile)
		r.Get("/export", h.Export)
		r.Delete("/", h.Logout)
	})

	return r
}

// TokenCtx rejects requests whose session token parameter is missing or
// implausibly long before any store lookup happens.
func (h *TeacherHandler) TokenCtx(next http.Handler) http.Handler {
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

// Login handles POST /api/auth/login for teachers.
func (h *TeacherHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("teacher-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "teacher_handler.login",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/auth/login"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req v1.TeacherLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "teacher login attempt",
		slog.String("request_id", reqID),
		slog.String("teacher_id", req.TeacherID),
		slog.Int("month", req.Month),
	)

	report, err := h.service.Login(ctx, identity.TeacherCredentials{
		TeacherID: req.TeacherID,
		Password:  req.Password,
		Month:     req.Month,
	})
	span.SetAttributes(
		attribute.Int64("request.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("request.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "teacher login failed",
			slog.String("request_id", reqID),
			slog.String("teacher_id", req.TeacherID),
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
func (h *TeacherHandler) GetLog(w http.ResponseWriter, r *http.Request) {
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
func (h *TeacherHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
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

// GetStudents handles GET /api/session/{token}/students.
func (h *TeacherHandler) GetStudents(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	view, err := h.service.Students(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
		"count":  view.Students.RowCount(),
	})
}

// GetProfile handles GET /api/session/{token}/profile.
func (h *TeacherHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	profile, err := h.service.Profile(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   profile,
	})
}

// Export handles GET /api/session/{token}/export?format=csv|xlsx. The
// response is the file itself, not a JSON envelope.
func (h *TeacherHandler) Export(w http.ResponseWriter, r *http.Request) {
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
func (h *TeacherHandler) Logout(w http.ResponseWriter, r *http.Request) {
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
// catalogue; anything unrecognized falls through to the generic handler.
func (h *TeacherHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidCredentials)
	case errors.Is(err, services.ErrSessionNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrSessionNotFound)
	case errors.Is(err, services.ErrProfileNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrProfileNotFound)
	case errors.Is(err, services.ErrSourceUnavailable):
		h.errorHandler.HandleError(w, r, apierrors.SourceUnavailableError(err))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// writeDownload serves export bytes with download headers. The CSV
// payload already carries its UTF-8 BOM.
func writeDownload(w http.ResponseWriter, format, filename string, data []byte) {
	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
