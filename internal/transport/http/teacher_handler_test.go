package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/internal/config"
	apierrors "classpulse/internal/errors"
	"classpulse/internal/identity"
	customMiddleware "classpulse/internal/middleware"
	"classpulse/internal/services"
	"classpulse/internal/sheets"
)

// stubSource serves canned worksheet grids so handler tests exercise real
// services end to end without a Google backend.
type stubSource struct {
	mu    sync.Mutex
	grids map[string][][]string
	errs  map[string]error
}

func newStubSource() *stubSource {
	src := &stubSource{
		grids: make(map[string][][]string),
		errs:  make(map[string]error),
	}
	names := config.Default().Sheets.Worksheets
	src.grids[names.ClassLog] = [][]string{
		{"Date", "Student ID", "Student", "Class", "Syllabus", "Hr", "Type of class", "Teachers ID", "Password", "MM", "Teachers Name", "Teacher", "Subject"},
		{"2025-04-02", "S001", "ada lovelace", "X", "IGCSE", "1.5", "Regular", "T01", "pw-one", "04", "grace hopper", "grace hopper", "Maths"},
		{"2025-04-01", "S002", "alan turing", "IX", "CBSE", "1", "Regular", "T01", "pw-one", "04", "grace hopper", "grace hopper", "Maths"},
		{"2025-04-02", "S001", "ada lovelace", "X", "IGCSE", "2", "Demo", "T01", "pw-one", "04", "grace hopper", "grace hopper", "Maths"},
		{"2025-04-20", "S003", "mary shelley", "VIII", "ICSE", "0.5", "Regular", "T02", "pw-two", "04", "edsger dijkstra", "edsger dijkstra", "English"},
	}
	src.grids[names.StudentData] = [][]string{
		{"Student id", "EM", "EM Phone"},
		{"S001", "Meera", "111-222"},
		{"S002", "Ravi", "333-444"},
	}
	// Subject headers sit past the contact block; two are enough here.
	src.grids[names.Profiles] = [][]string{
		{"Teacher id", "Phone number", "Mail. id", "Qualification", "Available Slots", "Language preferred  in Class", "IGCSE", "CBSE", "ICSE", "", "", "", "Maths", "Physics"},
		{"T01", "999-888", "grace@example.com", "MSc", "Mon-Fri evening", "English", "YES", "no", "", "", "", "", "10", "12"},
	}
	src.grids[names.Supalearn] = [][]string{
		{"Teacher id", "SupalearnID", "DemoFit"},
		{"T01", "SL-77", "Good"},
	}
	return src
}

func (s *stubSource) Fetch(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[worksheet]; ok {
		return nil, err
	}
	return s.grids[worksheet], nil
}

func (s *stubSource) Invalidate() {}

func (s *stubSource) Stats() sheets.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sheets.CacheStats{Entries: len(s.grids)}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTeacherRouter wires a real teacher service over the stub source and
// mounts the handler the way the portal app does.
func setupTeacherRouter(t *testing.T, src *stubSource) chi.Router {
	t.Helper()

	logger := testLogger()
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := customMiddleware.NewValidationMiddleware(logger, errorHandler)

	dataset := services.NewDataset(src, "sheet-1", config.Default().Sheets.Worksheets, nil, logger)
	store := identity.NewStore[identity.TeacherSession](time.Hour, 100, logger)
	t.Cleanup(store.Close)

	service := services.NewTeacherService(dataset, store, nil, logger)
	handler := NewTeacherHandler(service, validation, logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/teacher", handler.Routes())
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// loginTeacher logs T01 in for April and returns the session token.
func loginTeacher(t *testing.T, router chi.Router) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/teacher/auth/login", map[string]any{
		"teacher_id": "T01",
		"password":   "pw-one",
		"month":      4,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestTeacherHandler_Login(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())

	w := doJSON(t, router, http.MethodPost, "/api/teacher/auth/login", map[string]any{
		"teacher_id": "T01",
		"password":   "pw-one",
		"month":      4,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, "Grace Hopper", data["teacher_name"])
	assert.Equal(t, float64(4), data["month"])
	assert.Equal(t, "SL-77", data["supalearn_id"])
	assert.Equal(t, "Good", data["class_quality"])
	assert.Equal(t, float64(3), data["classes"])
	assert.InDelta(t, 4.5, data["total_hours"].(float64), 1e-9)
}

func TestTeacherHandler_LoginRejections(t *testing.T) {
	tests := []struct {
		name           string
		payload        map[string]any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "wrong password",
			payload:        map[string]any{"teacher_id": "T01", "password": "nope", "month": 4},
			expectedStatus: http.StatusUnauthorized,
			expectedType:   apierrors.TypeCredentialsNoMatch,
		},
		{
			name:           "unknown teacher",
			payload:        map[string]any{"teacher_id": "T99", "password": "pw-one", "month": 4},
			expectedStatus: http.StatusUnauthorized,
			expectedType:   apierrors.TypeCredentialsNoMatch,
		},
		{
			name:           "no rows for month",
			payload:        map[string]any{"teacher_id": "T01", "password": "pw-one", "month": 12},
			expectedStatus: http.StatusUnauthorized,
			expectedType:   apierrors.TypeCredentialsNoMatch,
		},
		{
			name:           "month out of range",
			payload:        map[string]any{"teacher_id": "T01", "password": "pw-one", "month": 13},
			expectedStatus: http.StatusBadRequest,
			expectedType:   apierrors.TypeValidation,
		},
		{
			name:           "missing password",
			payload:        map[string]any{"teacher_id": "T01", "month": 4},
			expectedStatus: http.StatusBadRequest,
			expectedType:   apierrors.TypeValidation,
		},
	}

	router := setupTeacherRouter(t, newStubSource())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/teacher/auth/login", tt.payload)

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.expectedType, body["type"])
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestTeacherHandler_LoginSourceUnavailable(t *testing.T) {
	src := newStubSource()
	src.errs[config.Default().Sheets.Worksheets.ClassLog] = errors.New("quota exceeded")
	router := setupTeacherRouter(t, src)

	w := doJSON(t, router, http.MethodPost, "/api/teacher/auth/login", map[string]any{
		"teacher_id": "T01",
		"password":   "pw-one",
		"month":      4,
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, apierrors.TypeSourceUnavailable, body["type"])
}

func TestTeacherHandler_GetLog(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/log", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["count"])

	data := body["data"].(map[string]any)
	log := data["log"].(map[string]any)
	cols := log["columns"].([]any)
	assert.Len(t, cols, 7)
	assert.Equal(t, "Date", cols[0])

	rows := log["rows"].([]any)
	require.Len(t, rows, 3)
	first := rows[0].([]any)
	assert.Equal(t, "2025-04-01", first[0])
	assert.Equal(t, "S002", first[1])

	// Rows 1 and 2 share date and student after sorting.
	assert.Equal(t, []any{float64(1), float64(2)}, data["duplicates"])
}

func TestTeacherHandler_GetSummary(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/summary", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	assert.InDelta(t, 4.5, data["total_hours"].(float64), 1e-9)

	hours := data["hours"].(map[string]any)
	assert.Equal(t, []any{"Class", "Syllabus", "Type of class", "Hr"}, hours["columns"])
	assert.Len(t, hours["rows"], 3)
}

func TestTeacherHandler_GetStudents(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/students", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["count"])

	students := body["data"].(map[string]any)["students"].(map[string]any)
	assert.Equal(t, []any{"Student ID", "Student", "EM", "Phone Number"}, students["columns"])

	rows := students["rows"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].([]any)
	assert.Equal(t, "ada lovelace", first[1])
	assert.Equal(t, "Meera", first[2])
}

func TestTeacherHandler_GetProfile(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/profile", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "T01", data["teacher_id"])
	assert.Equal(t, "999-888", data["phone"])
	assert.Equal(t, "grace@example.com", data["email"])
	assert.Equal(t, []any{"IGCSE"}, data["syllabus"])

	subjects := data["subjects"].([]any)
	require.Len(t, subjects, 2)
	maths := subjects[0].(map[string]any)
	assert.Equal(t, "Maths", maths["subject"])
	assert.Equal(t, "Upto 10th", maths["level"])
}

func TestTeacherHandler_GetProfileMissing(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())

	w := doJSON(t, router, http.MethodPost, "/api/teacher/auth/login", map[string]any{
		"teacher_id": "T02",
		"password":   "pw-two",
		"month":      4,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	token := decodeBody(t, w)["data"].(map[string]any)["token"].(string)

	w = doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/profile", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, apierrors.TypeNotFound, body["type"])
	assert.Equal(t, "PROFILE_NOT_FOUND", body["error_code"])
}

func TestTeacherHandler_ExportCSV(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/export?format=csv", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Grace Hopper_summary.csv"`, w.Header().Get("Content-Disposition"))

	raw := w.Body.Bytes()
	assert.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "CSV carries a UTF-8 BOM")
	assert.Contains(t, string(raw), "Date,Student ID,Student")
}

func TestTeacherHandler_ExportXLSX(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/export?format=xlsx", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Grace Hopper_report.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip container")
}

func TestTeacherHandler_ExportUnknownFormat(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/export?format=pdf", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.TypeValidation, decodeBody(t, w)["type"])
}

func TestTeacherHandler_SessionErrors(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())

	w := doJSON(t, router, http.MethodGet, "/api/teacher/session/no-such-token/log", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeBody(t, w)["error_code"])

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	w = doJSON(t, router, http.MethodGet, "/api/teacher/session/"+string(long)+"/log", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeacherHandler_Logout(t *testing.T) {
	router := setupTeacherRouter(t, newStubSource())
	token := loginTeacher(t, router)

	w := doJSON(t, router, http.MethodDelete, "/api/teacher/session/"+token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decodeBody(t, w)["status"])

	// The views are gone with the session.
	w = doJSON(t, router, http.MethodGet, "/api/teacher/session/"+token+"/log", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
