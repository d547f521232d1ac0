package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "classpulse/internal/errors"
	"classpulse/internal/infrastructure"
	"classpulse/internal/services"
	ws "classpulse/internal/websocket"
	"classpulse/pkg/contracts/events"
)

// DataHandler owns the worksheet cache surface: operators refresh the
// memoized worksheets and inspect cache activity here. Open sessions are
// never touched; only new logins see refreshed data.
type DataHandler struct {
	dataset      *services.Dataset
	hub          *ws.Hub
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a data handler. The hub may be nil when the
// portal runs without WebSocket support.
func NewDataHandler(dataset *services.Dataset, hub *ws.Hub, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		dataset:      dataset,
		hub:          hub,
		logger:       logger.With(slog.String("handler", "data")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data management routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/refresh", h.Refresh)
	r.Get("/stats", h.GetStats)

	return r
}

// Refresh handles POST /api/data/refresh: the whole worksheet cache is
// invalidated, every worksheet is rewarmed, and connected clients get a
// data:refreshed broadcast.
func (h *DataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	start := time.Now()

	h.logger.InfoContext(ctx, "data refresh requested",
		slog.String("request_id", reqID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	refreshed, failed := h.dataset.Refresh(ctx)

	event := events.DataRefreshedEvent{
		Worksheets:  refreshed,
		Failed:      failed,
		RefreshedAt: time.Now(),
	}
	if h.hub != nil {
		h.hub.BroadcastRefresh(event, infrastructure.TraceIDFromContext(ctx))
	}

	h.logger.InfoContext(ctx, "data refresh completed",
		slog.String("request_id", reqID),
		slog.Int("refreshed", len(refreshed)),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(start)),
	)

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   event,
	})
}

// GetStats handles GET /api/data/stats with a cache activity snapshot.
func (h *DataHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"spreadsheet_id": h.dataset.SpreadsheetID(),
			"cache":          h.dataset.Stats(),
		},
	})
}
