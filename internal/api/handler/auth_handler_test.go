package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"loan-engine/internal/api/handler"
	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(cfg config.AuthConfig) http.Handler {
	h := handler.NewAuthHandler(cfg, testLogger())
	r := chi.NewRouter()
	r.Post("/auth/token", h.GenerateBearerToken)
	return r
}

func TestGenerateBearerToken(t *testing.T) {
	const secret = "s3cret"
	router := authRouter(config.AuthConfig{Enabled: true, JWTSecret: secret, TokenTTL: time.Hour})

	rec := do(router, http.MethodPost, "/auth/token", `{"username":"teller-1","role":"officer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp.Token, "Bearer "))

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(resp.Token, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "teller-1", sub)
	assert.Equal(t, "officer", claims["role"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, time.Minute)
}

func TestGenerateBearerTokenValidation(t *testing.T) {
	router := authRouter(config.AuthConfig{JWTSecret: "x"})

	rec := do(router, http.MethodPost, "/auth/token", `{"username":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username", decodeError(t, rec).Field)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/auth/token", `not json`).Code)
}
