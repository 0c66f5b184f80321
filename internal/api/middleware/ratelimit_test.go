package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"loan-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterInMemory(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	rl := NewRateLimiterMiddleware(cfg, nil, discardLogger())

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("127.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("127.0.0.1:1000").Code)

	blocked := send("127.0.0.1:1000")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))

	var body map[string]map[string]string
	require.NoError(t, json.NewDecoder(blocked.Body).Decode(&body))
	assert.Equal(t, "Rate limit exceeded", body["error"]["message"])

	assert.Equal(t, http.StatusOK, send("10.1.1.1:1000").Code, "other clients have their own bucket")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: false}, nil, discardLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	assert.False(t, rl.IsEnabled())
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		rl.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestExtractIP(t *testing.T) {
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{}, nil, discardLogger())

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"}, "127.0.0.1:1", "192.168.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.1"}, "127.0.0.1:1", "10.0.0.1"},
		{"invalid forwarded falls back", map[string]string{"X-Forwarded-For": "nope"}, "127.0.0.1:12345", "127.0.0.1"},
		{"remote addr", nil, "127.0.0.1:12345", "127.0.0.1"},
		{"bare ip", nil, "10.9.8.7", "10.9.8.7"},
		{"unparseable", nil, "somewhere", unknownIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, rl.extractIP(req))
		})
	}
}
