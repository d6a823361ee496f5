package http

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apierrors "github.com/screamboard/screamboard/internal/errors"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/metrics"
	"github.com/screamboard/screamboard/internal/scream"
)

const (
	requestIDKey = "request_id"
	identityKey  = "identity"
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    b,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// Prune forgets visitors whose bucket has refilled.
func (rl *IPRateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	pruned := 0
	for ip, limiter := range rl.visitors {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.visitors, ip)
			pruned++
		}
	}
	return pruned
}

// Serve prunes idle visitors every ten minutes until ctx is cancelled.
func (rl *IPRateLimiter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := rl.Prune(); n > 0 {
				logger.Log.Debug("Pruned rate limiter visitors", zap.Int("count", n))
			}
		}
	}
}

func (rl *IPRateLimiter) String() string {
	return "rate-limiter-pruner"
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			respondAPIError(c, apierrors.RateLimited("too many screams, please wait"))
			return
		}
		c.Next()
	}
}

// RequireAdmin reads user_id from the JSON body, hashes it and lets the
// request through only for admins. The resolved identity is available to
// handlers through adminIdentity.
func RequireAdmin(board *scream.Service, hasher *identity.Hasher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input userInput
		if !bindJSON(c, &input) {
			return
		}
		id, err := hasher.Hash(string(input.UserID))
		if err != nil {
			respondError(c, err)
			return
		}

		ok, err := board.IsAdmin(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !ok {
			respondAPIError(c, apierrors.Forbidden("admin privileges required"))
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func adminIdentity(c *gin.Context) string {
	return c.GetString(identityKey)
}

// SecurityHeadersMiddleware adds basic security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// RequestIDMiddleware reuses X-Request-ID or generates one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// GinLoggerMiddleware replaces gin.Logger with structured zap logging.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			logger.WithRequestID(c.GetString(requestIDKey)),
		}
		switch {
		case status >= 500:
			logger.Log.Error("HTTP request", fields...)
		case status >= 400:
			logger.Log.Warn("HTTP request", fields...)
		default:
			logger.Log.Info("HTTP request", fields...)
		}
	}
}

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
