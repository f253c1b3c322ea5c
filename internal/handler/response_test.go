package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toptuitions/toptuitions/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantField  string
	}{
		{"validation", apperror.ValidationFailed("phone", "phone must be 10 digits"), http.StatusBadRequest, "validation_error", "phone"},
		{"unauthorized", apperror.Unauthorized("invalid email or password"), http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", apperror.Forbidden("owners only"), http.StatusForbidden, "forbidden", ""},
		{"not found wrapped", fmt.Errorf("service: %w", apperror.NotFound("tuition", "9")), http.StatusNotFound, "not_found", ""},
		{"conflict", apperror.Conflict("user", "x"), http.StatusConflict, "conflict", ""},
		{"unavailable", apperror.Unavailable("off"), http.StatusServiceUnavailable, "unavailable", ""},
		{"plain error", errors.New("sql: database is locked"), http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.Equal(t, tt.wantField, body.Field)
			assert.NotContains(t, body.Message, "sql:", "internal details must not leak")
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "owners only", errorMessage(apperror.Forbidden("owners only")))
	assert.Equal(t, "Something went wrong, please try again.", errorMessage(errors.New("disk I/O error")))
}

func TestDecodeJSON(t *testing.T) {
	type input struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Asha"}`))
		var in input
		require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &in))
		assert.Equal(t, "Asha", in.Name)
	})

	for name, body := range map[string]string{
		"empty":         "",
		"malformed":     `{"name":`,
		"unknown field": `{"name":"A","admin":true}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			var in input
			err := decodeJSON(httptest.NewRecorder(), req, &in)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}
