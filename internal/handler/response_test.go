package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pantry/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
	}{
		{name: "validation", err: apperror.ValidationFailed("name", "name is required"), wantCode: http.StatusBadRequest, wantError: "validation_error"},
		{name: "unauthorized", err: apperror.Unauthorized("invalid name or password"), wantCode: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "forbidden", err: apperror.Forbidden("no"), wantCode: http.StatusForbidden, wantError: "forbidden"},
		{name: "not found", err: apperror.NotFound("recipe", 3), wantCode: http.StatusNotFound, wantError: "not_found"},
		{name: "duplicate name", err: apperror.Conflict("allergy", "Gluten"), wantCode: http.StatusConflict, wantError: "conflict"},
		{name: "has dependents", err: apperror.HasDependents("allergy", 3), wantCode: http.StatusConflict, wantError: "has_dependents"},
		{name: "wrapped", err: fmt.Errorf("service: %w", apperror.NotFound("user", 1)), wantCode: http.StatusNotFound, wantError: "not_found"},
		{name: "untyped", err: errors.New("sqlite: disk I/O error at /var/db"), wantCode: http.StatusInternalServerError, wantError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotContains(t, body.Message, "/var/db")
		})
	}
}

func TestContentRequestAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{raw: `2`, want: 2},
		{raw: `0.25`, want: 0.25},
		{raw: `"1.5"`, want: 1.5},
		{raw: `" 3 "`, want: 3},
		{raw: `""`, want: 0},
		{raw: `"a pinch"`, want: 0},
		{raw: `null`, want: 0},
		{raw: ``, want: 0},
		{raw: `-1`, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := contentRequest{Amount: json.RawMessage(tt.raw)}
			assert.Equal(t, tt.want, c.amount())
		})
	}
}
