package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	maxIdempotencyKeyLen = 255
)

// KeyReserver claims a key for ttl. Reserve returns false when the key is
// already held. Release gives the key back so the request can be retried.
type KeyReserver interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisKeyReserver struct {
	client *redis.Client
	prefix string
}

func NewRedisKeyReserver(client *redis.Client) *RedisKeyReserver {
	return &RedisKeyReserver{client: client, prefix: "idempotency:"}
}

func (r *RedisKeyReserver) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (r *RedisKeyReserver) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Idempotency rejects a request whose Idempotency-Key was already seen inside
// ttl. Keys are scoped to the request path. A request that ends with a 4xx or
// 5xx status releases its key. Requests without the header pass through, and
// a nil reserver disables the check.
func Idempotency(reserver KeyReserver, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if reserver == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				writeJSONError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			scoped := r.URL.Path + "|" + key
			ok, err := reserver.Reserve(r.Context(), scoped, ttl)
			if err != nil {
				logger.Error("Idempotency check failed; processing request", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				logger.Warn("Duplicate request rejected", "path", r.URL.Path, "idempotency_key", key)
				writeJSONError(w, http.StatusConflict, "A request with this Idempotency-Key was already processed")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < http.StatusBadRequest {
				return
			}
			if err := reserver.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
				logger.Error("Failed to release idempotency key", "error", err, "path", r.URL.Path, "status", ww.Status())
			}
		})
	}
}
