package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "classpulse/internal/errors"
)

func newTestValidation(t *testing.T) *ValidationMiddleware {
	t.Helper()
	return NewValidationMiddleware(testLogger(), apierrors.NewErrorHandler(testLogger(), false))
}

type loginPayload struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Month     int    `json:"month" validate:"required,min=1,max=12"`
}

type exportPayload struct {
	Filename string `json:"filename" validate:"required,filename"`
	Format   string `json:"format" validate:"required,oneof=csv xlsx"`
}

func TestValidateStruct(t *testing.T) {
	vm := newTestValidation(t)

	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
		wantMsg string
	}{
		{
			name:    "valid login",
			input:   loginPayload{TeacherID: "t001", Password: "secret", Month: 5},
			wantErr: false,
		},
		{
			name:    "missing teacher id",
			input:   loginPayload{Password: "secret", Month: 5},
			wantErr: true,
			wantMsg: "teacher_id is required",
		},
		{
			name:    "month too large",
			input:   loginPayload{TeacherID: "t001", Password: "secret", Month: 13},
			wantErr: true,
			wantMsg: "month must be at most 12",
		},
		{
			name:    "month missing",
			input:   loginPayload{TeacherID: "t001", Password: "secret"},
			wantErr: true,
			wantMsg: "month is required",
		},
		{
			name:    "valid export",
			input:   exportPayload{Filename: "Jane Doe_summary.csv", Format: "csv"},
			wantErr: false,
		},
		{
			name:    "traversal filename",
			input:   exportPayload{Filename: "../etc/passwd", Format: "csv"},
			wantErr: true,
			wantMsg: "filename must be a valid filename",
		},
		{
			name:    "bad format",
			input:   exportPayload{Filename: "summary.csv", Format: "pdf"},
			wantErr: true,
			wantMsg: "format must be one of: csv, xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vm.ValidateStruct(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			apiErr, ok := err.(*apierrors.APIError)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok)
			found := false
			for _, f := range details.Errors {
				if f.Message == tt.wantMsg {
					found = true
				}
			}
			assert.True(t, found, "expected message %q in %v", tt.wantMsg, details.Errors)
		})
	}
}

func TestValidateRequest_InvalidJSON(t *testing.T) {
	vm := newTestValidation(t)
	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for invalid JSON")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/teacher/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestValidateRequest_SkipsGet(t *testing.T) {
	vm := newTestValidation(t)
	called := false
	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestValidateRequest_PayloadTooLarge(t *testing.T) {
	vm := newTestValidation(t)
	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for oversized payload")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/teacher/login", strings.NewReader("{}"))
	req.ContentLength = 10 * 1024 * 1024
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestValidateRequest_RestoresBody(t *testing.T) {
	vm := newTestValidation(t)
	body := `{"teacher_id":"t001","password":"secret","month":5}`

	var seen string
	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(data)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/teacher/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, body, seen)
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator("application/json")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("accepts json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_CONTENT_TYPE")
	})

	t.Run("unsupported media type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("<xml/>"))
		req.Header.Set("Content-Type", "application/xml")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
	})

	t.Run("skips GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("skips bodyless POST", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestQueryParamValidator_ValidateEnum(t *testing.T) {
	qv := NewQueryParamValidator(testLogger(), apierrors.NewErrorHandler(testLogger(), false))
	formats := []string{"csv", "xlsx"}

	t.Run("empty returns default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/export", nil)
		rec := httptest.NewRecorder()
		got, ok := qv.ValidateEnum(rec, req, "format", formats, "csv")
		assert.True(t, ok)
		assert.Equal(t, "csv", got)
	})

	t.Run("allowed value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/export?format=xlsx", nil)
		rec := httptest.NewRecorder()
		got, ok := qv.ValidateEnum(rec, req, "format", formats, "csv")
		assert.True(t, ok)
		assert.Equal(t, "xlsx", got)
	})

	t.Run("unknown value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/export?format=pdf", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateEnum(rec, req, "format", formats, "csv")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
