package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loan-engine/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousActor is recorded as the actor when authentication is disabled.
const AnonymousActor = "anonymous"

type Principal struct {
	Subject string
	Role    string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Actor names who is acting on the request, for audit columns.
func Actor(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.Subject != "" {
		return p.Subject
	}
	return AnonymousActor
}

func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := validateJWT(r, cfg.JWTSecret)
			if err != nil {
				logger.Warn("AuthMiddleware: rejected request", "path", r.URL.Path, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func validateJWT(r *http.Request, secret string) (Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Principal{}, errors.New("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return Principal{}, errors.New("invalid Authorization header format")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return Principal{}, errors.New("token has no subject")
	}
	role, _ := claims["role"].(string)
	return Principal{Subject: sub, Role: role}, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"message": message,
		},
	})
}
