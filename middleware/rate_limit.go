package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis     *redis.Client
	Requests  int           // Number of requests allowed
	Window    time.Duration // Time window
	KeyPrefix string        // Redis key prefix
	SkipPaths []string      // Paths to skip rate limiting
}

// RateLimitStrategy defines different rate limiting strategies
type RateLimitStrategy string

const (
	StrategyIP       RateLimitStrategy = "ip"
	StrategyUser     RateLimitStrategy = "user"
	StrategyUserOrIP RateLimitStrategy = "user_or_ip"
)

// RateLimiter is a sliding-window limiter backed by Redis sorted sets.
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}

	return &RateLimiter{
		config:   config,
		strategy: strategy,
		now:      time.Now,
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if rl.config.Redis == nil || rl.shouldSkipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := rl.getKey(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, resetTime, remaining, err := rl.checkRateLimit(c.Request.Context(), key)
		if err != nil {
			// An unreachable Redis must never block an emergency request
			logrus.Errorf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		rl.setRateLimitHeaders(c, remaining, resetTime)

		if !allowed {
			rl.handleRateLimitExceeded(c, resetTime)
			return
		}

		c.Next()
	})
}

// checkRateLimit checks if request is within rate limit
func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (allowed bool, resetTime time.Time, remaining int, err error) {
	now := rl.now()
	window := rl.config.Window
	member := uuid.NewString()

	pipe := rl.config.Redis.Pipeline()

	// Remove expired entries
	expiredBefore := now.Add(-window).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", expiredBefore))

	// Count current requests
	pipe.ZCard(ctx, key)

	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})

	pipe.Expire(ctx, key, window+time.Minute)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, time.Time{}, 0, err
	}

	// Count before adding the new request
	currentCount := results[1].(*redis.IntCmd).Val()

	remaining = rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}

	resetTime = now.Add(window)
	allowed = currentCount < int64(rl.config.Requests)

	if !allowed {
		rl.config.Redis.ZRem(ctx, key, member)
	}

	return allowed, resetTime, remaining, nil
}

// getKey generates rate limit key based on strategy
func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix

	switch rl.strategy {
	case StrategyUser:
		userID := c.GetString("userID")
		if userID == "" {
			return ""
		}
		return fmt.Sprintf("%s:user:%s", prefix, userID)

	case StrategyUserOrIP:
		if userID := c.GetString("userID"); userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())

	default:
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
	}
}

func (rl *RateLimiter) setRateLimitHeaders(c *gin.Context, remaining int, resetTime time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func (rl *RateLimiter) handleRateLimitExceeded(c *gin.Context, resetTime time.Time) {
	retryAfter := int64(resetTime.Sub(rl.now()).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}

	c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))

	logrus.WithFields(logrus.Fields{
		"client_ip":   c.ClientIP(),
		"user_id":     c.GetString("userID"),
		"path":        c.Request.URL.Path,
		"retry_after": retryAfter,
	}).Warn("Rate limit exceeded")

	utils.RateLimitResponse(c, retryAfter)
	c.Abort()
}

func (rl *RateLimiter) shouldSkipPath(path string) bool {
	for _, skipPath := range rl.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// DefaultRateLimit creates a default rate limiter (100 requests per minute per IP)
func DefaultRateLimit(redis *redis.Client) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:     redis,
		Requests:  100,
		Window:    time.Minute,
		KeyPrefix: "rate_limit",
		SkipPaths: []string{"/health", "/metrics"},
	}, StrategyUserOrIP)
	return limiter.Middleware()
}

// EmergencyRateLimit bounds confirm/activate per user. It guards against a
// stuck button or a runaway client, not against genuine repeated emergencies.
func EmergencyRateLimit(redis *redis.Client, perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 10
	}
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:     redis,
		Requests:  perMinute,
		Window:    time.Minute,
		KeyPrefix: "emergency_rate_limit",
	}, StrategyUser)
	return limiter.Middleware()
}

// WebSocketRateLimit creates rate limiter for WebSocket connections
func WebSocketRateLimit(redis *redis.Client) gin.HandlerFunc {
	limiter := NewRateLimiter(RateLimitConfig{
		Redis:     redis,
		Requests:  10,
		Window:    time.Minute,
		KeyPrefix: "ws_rate_limit",
	}, StrategyIP)
	return limiter.Middleware()
}
