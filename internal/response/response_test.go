package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"id": 7})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]interface{}{"id": float64(7)}, env.Data)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "who") }, http.StatusUnauthorized, "who"},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "no") }, http.StatusForbidden, "no"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound, "gone"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "dup") }, http.StatusConflict, "dup"},
		{"too large", func(w http.ResponseWriter) { TooLarge(w, "big") }, http.StatusRequestEntityTooLarge, "big"},
		{"internal", InternalError, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.msg, env.Error)
		})
	}
}

func TestBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	Bytes(rec, "application/pdf", []byte{0x50, 0x44, 0x46})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, []byte{0x50, 0x44, 0x46}, rec.Body.Bytes())
}

func TestBytes_DefaultContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Bytes(rec, "", nil)

	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
}
