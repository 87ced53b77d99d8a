package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, status int, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	obs, logs := observer.New(zapcore.InfoLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	w := httptest.NewRecorder()
	LoggingMiddleware(zap.New(obs))(handler).ServeHTTP(w, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	return w, entries[0].ContextMap()
}

func TestLoggingMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/heatmap", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	w, fields := serveLogged(t, http.StatusAccepted, req)

	assert.Equal(t, http.MethodPost, fields["method"])
	assert.Equal(t, "/api/v1/heatmap", fields["path"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, "192.168.1.1:12345", fields["client_ip"])
	assert.Contains(t, fields, "duration_ms")

	requestID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, fields["request_id"])
}

func TestLoggingMiddleware_ReusesIncomingRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cost", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	w, fields := serveLogged(t, http.StatusBadRequest, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", fields["request_id"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
}

func TestLoggingMiddleware_ClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"remote addr", "", "10.0.0.1:54321"},
		{"forwarded", "203.0.113.50", "203.0.113.50"},
		{"forwarded chain", "203.0.113.50, 70.41.3.18", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			_, fields := serveLogged(t, http.StatusOK, req)
			assert.Equal(t, tt.want, fields["client_ip"])
		})
	}
}
