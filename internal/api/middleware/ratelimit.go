package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"loan-engine/internal/config"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const unknownIP = "unknown"

// RateLimiterMiddleware limits requests per client IP. With a Redis client the
// counter is a shared fixed one-second window; without one each process keeps
// token buckets in memory.
type RateLimiterMiddleware struct {
	redisClient *redis.Client
	limiters    sync.Map
	cfg         config.RateLimitConfig
	logger      *slog.Logger
	window      time.Duration
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, redisClient *redis.Client, logger *slog.Logger) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger.With("component", "RateLimiter"),
		window:      time.Second,
	}

	switch {
	case !cfg.Enabled:
		rl.logger.Info("Rate limiting is disabled via configuration.")
	case redisClient == nil:
		rl.logger.Info("Rate limiter using in-memory token buckets", "rps", cfg.RPS, "burst", cfg.Burst)
		go rl.cleanupLimiters()
	default:
		rl.logger.Info("Rate limiter using Redis", "rps", cfg.RPS, "window", rl.window)
	}
	return rl
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled
}

func (rl *RateLimiterMiddleware) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := rl.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
	return limiter.(*rate.Limiter)
}

func (rl *RateLimiterMiddleware) cleanupLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.limiters.Range(func(key, value interface{}) bool {
			limiter := value.(*rate.Limiter)
			if limiter.Tokens() >= float64(rl.cfg.Burst) {
				rl.limiters.Delete(key)
			}
			return true
		})
	}
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" {
		if net.ParseIP(xRealIP) != nil {
			return xRealIP
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
		return parsed.String()
	}

	rl.logger.Warn("Could not determine client IP for rate limiting", "remoteAddr", r.RemoteAddr)
	return unknownIP
}

// allowRedis reports whether ip is within its window. Redis failures let the
// request through.
func (rl *RateLimiterMiddleware) allowRedis(r *http.Request, ip string) bool {
	ctx := r.Context()
	key := fmt.Sprintf("ratelimit:%s", ip)

	pipe := rl.redisClient.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error("Redis pipeline failed during rate limiting check", "error", err, "ip", ip)
		return true
	}

	count, err := incrCmd.Result()
	if err != nil {
		rl.logger.Error("Failed to read INCR result", "error", err, "ip", ip)
		return true
	}
	if ttl, err := ttlCmd.Result(); err == nil && ttl < 0 {
		if err := rl.redisClient.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.logger.Error("Failed to set expiry on rate limit key", "error", err, "key", key)
		}
	}

	limit := int64(rl.cfg.RPS) + int64(rl.cfg.Burst)
	return count <= limit
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)
		if ip == unknownIP {
			rl.logger.Error("Blocking request due to unknown client IP")
			writeJSONError(w, http.StatusForbidden, "Forbidden")
			return
		}

		var allowed bool
		if rl.redisClient != nil {
			allowed = rl.allowRedis(r, ip)
		} else {
			allowed = rl.getLimiter(ip).Allow()
		}

		if !allowed {
			rl.logger.Warn("Rate limit exceeded", "ip", ip)
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
