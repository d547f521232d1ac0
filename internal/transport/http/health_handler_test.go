package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/internal/config"
	"classpulse/internal/identity"
	"classpulse/internal/services"
)

func setupHealthRouter(t *testing.T, sheetID string) chi.Router {
	t.Helper()

	logger := testLogger()
	dataset := services.NewDataset(newStubSource(), sheetID, config.Default().Sheets.Worksheets, nil, logger)
	store := identity.NewStore[identity.TeacherSession](time.Hour, 100, logger)
	t.Cleanup(store.Close)

	service := services.NewHealthService("teacher", dataset, store, nil, logger)
	handler := NewHealthHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/api", func(api chi.Router) {
		api.Mount("/health", handler.Routes())
		api.Get("/version", handler.Version)
	})
	return r
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	router := setupHealthRouter(t, "sheet-1")

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "teacher", body["portal"])
	assert.NotEmpty(t, body["version"])
}

func TestHealthHandler_Readiness(t *testing.T) {
	router := setupHealthRouter(t, "sheet-1")

	w := doJSON(t, router, http.MethodGet, "/api/health/ready", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ready", body["status"])

	services := body["services"].(map[string]any)
	assert.Contains(t, services, "source")
	assert.Contains(t, services, "sessions")
	assert.Contains(t, services, "websocket")
}

func TestHealthHandler_ReadinessNotReady(t *testing.T) {
	// No spreadsheet configured means the portal cannot answer logins.
	router := setupHealthRouter(t, "")

	w := doJSON(t, router, http.MethodGet, "/api/health/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", decodeBody(t, w)["status"])
}

func TestHealthHandler_Liveness(t *testing.T) {
	router := setupHealthRouter(t, "sheet-1")

	w := doJSON(t, router, http.MethodGet, "/api/health/live", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "alive", body["status"])
	assert.Contains(t, body["runtime"], "goroutines")
}

func TestHealthHandler_Version(t *testing.T) {
	router := setupHealthRouter(t, "sheet-1")

	w := doJSON(t, router, http.MethodGet, "/api/version", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["version"])
	assert.Equal(t, "teacher", body["portal"])
	assert.Contains(t, body, "go_version")
}

func TestHealthHandler_SystemStats(t *testing.T) {
	router := setupHealthRouter(t, "sheet-1")

	w := doJSON(t, router, http.MethodGet, "/api/health/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "teacher", body["portal"])
	assert.Equal(t, float64(0), body["websocket_clients"])
	assert.Contains(t, body, "sessions")
	assert.Contains(t, body, "cache")
}
