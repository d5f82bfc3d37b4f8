package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/platform/logger"
)

func newTestRouter(buf *bytes.Buffer) http.Handler {
	log := logger.NewWithWriter(buf, logger.Options{Level: logger.Debug, Format: logger.FormatJSON})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestID)
	r.Use(ClientContext)
	r.Use(RequestLog(log))
	r.Use(Recover(log))

	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetClientID(r.Context())
		_, _ = w.Write([]byte(id))
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	return r
}

func TestMiddleware_ClientIDAndRequestLog(t *testing.T) {
	var buf bytes.Buffer
	h := newTestRouter(&buf)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(ClientHeader, "tab-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tab-7", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(chimw.RequestIDHeader))
	assert.Contains(t, buf.String(), `"client_id":"tab-7"`)
	assert.Contains(t, buf.String(), `"path":"/ok"`)
}

func TestMiddleware_RecoverLogsPanic(t *testing.T) {
	var buf bytes.Buffer
	h := newTestRouter(&buf)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), `"status":500`)
}
