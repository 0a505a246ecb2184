package webapp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/orchestrator/internal/logging"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_PreservesExisting(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware_DenyWhenUnconfigured(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), nil)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_SpecificOrigin(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), []string{"http://allowed.com"})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://allowed.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "http://allowed.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req2 := httptest.NewRequest("GET", "/test", nil)
	req2.Header.Set("Origin", "http://evil.com")
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	assert.Empty(t, rr2.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware_AccessLogLevel(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	for _, tt := range []struct {
		accessLog bool
		level     string
	}{
		{true, `"level":"info"`},
		{false, `"level":"debug"`},
	} {
		var buf syncBuffer
		handler := loggingMiddleware(inner, logging.NewStyled(&buf, "debug", logging.StyleJSON), tt.accessLog)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/teapot", nil))

		assert.Equal(t, http.StatusTeapot, rr.Code)
		out := buf.String()
		assert.Contains(t, out, tt.level)
		assert.Contains(t, out, `"status":418`)
		assert.Contains(t, out, `"bytes":15`)
		assert.Contains(t, out, `"path":"/teapot"`)
	}
}

func TestStatusWriterKeepsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := wrapStatus(rr)
	sw.WriteHeader(http.StatusAccepted)
	sw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusAccepted, sw.status)
	assert.Same(t, sw, wrapStatus(sw))

	var _ http.Flusher = sw
	var _ http.Hijacker = sw
	assert.Equal(t, rr, sw.Unwrap())
}

func TestCheckWebSocketOrigin(t *testing.T) {
	req := httptest.NewRequest("GET", "/run_live", nil)
	assert.True(t, checkWebSocketOrigin(nil)(req), "no Origin header")

	req.Header.Set("Origin", "http://a.com")
	assert.False(t, checkWebSocketOrigin(nil)(req))
	assert.True(t, checkWebSocketOrigin([]string{"*"})(req))
	assert.True(t, checkWebSocketOrigin([]string{"http://a.com"})(req))
	assert.False(t, checkWebSocketOrigin([]string{"http://b.com"})(req))
}
