package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-engine/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "testsecret"
	cfg := config.AuthConfig{Enabled: true, JWTSecret: secret}

	var seen Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		cfg    config.AuthConfig
		header string
		want   int
	}{
		{"disabled middleware passes through", config.AuthConfig{Enabled: false}, "", http.StatusOK},
		{"missing header", cfg, "", http.StatusUnauthorized},
		{"wrong scheme", cfg, "Basic abc", http.StatusUnauthorized},
		{"garbage token", cfg, "Bearer invalidtoken", http.StatusUnauthorized},
		{
			"wrong secret", cfg,
			"Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
		{
			"expired token", cfg,
			"Bearer " + signToken(t, secret, jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(-time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
		{
			"token without subject", cfg,
			"Bearer " + signToken(t, secret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
		{
			"valid token", cfg,
			"Bearer " + signToken(t, secret, jwt.MapClaims{"sub": "ops", "role": "officer", "exp": time.Now().Add(time.Hour).Unix()}),
			http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(tt.cfg, discardLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":{"message":"Unauthorized"}}`, rec.Body.String())
			}
		})
	}

	assert.Equal(t, Principal{Subject: "ops", Role: "officer"}, seen)
}

func TestActor(t *testing.T) {
	assert.Equal(t, AnonymousActor, Actor(context.Background()))
	assert.Equal(t, "teller-7", Actor(WithPrincipal(context.Background(), Principal{Subject: "teller-7"})))
}
