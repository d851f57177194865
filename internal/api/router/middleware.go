package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// LoggerMiddleware logs HTTP requests with slog.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("body_size", c.Writer.Size()),
		)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				logger.Error("Request error",
					slog.String("error", e.Error()),
				)
			}
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RateLimitConfig configures one fixed-window limiter. Counters live in
// Redis under KeyPrefix so multiple windows can guard the same route
// independently.
type RateLimitConfig struct {
	RedisClient *redis.Client
	Limit       int
	Window      time.Duration
	KeyPrefix   string
}

// RateLimiter rejects requests beyond Limit per Window per client IP with
// 429, before any validation or record work happens. If Redis is
// unavailable the request is let through; admission control is a caller
// convenience, not a correctness guarantee.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		key := fmt.Sprintf("%s%s", cfg.KeyPrefix, clientKey(c))

		count, err := cfg.RedisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			cfg.RedisClient.Expire(ctx, key, cfg.Window)
		}

		ttl, _ := cfg.RedisClient.TTL(ctx, key).Result()
		reset := int(ttl.Seconds())
		if reset < 0 {
			reset = 0
		}

		if count > int64(cfg.Limit) {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":           "rate limit exceeded",
				"rate_limit":      cfg.Limit,
				"retry_after_sec": reset,
			})
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", cfg.Limit-int(count)))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		c.Next()
	}
}

// clientKey identifies the caller for rate limiting. ClientIP strips the
// source port, so all connections from one address share a counter.
func clientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}
