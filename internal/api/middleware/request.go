package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type attemptInfo struct {
	Count       int
	LastAttempt time.Time
}

// loginAttemptTracker throttles repeated login attempts per client IP.
type loginAttemptTracker struct {
	attempts     map[string]*attemptInfo
	mu           sync.Mutex
	maxAttempts  int
	window       time.Duration
	cleanupEvery time.Duration
}

func newLoginAttemptTracker() *loginAttemptTracker {
	tracker := &loginAttemptTracker{
		attempts:     make(map[string]*attemptInfo),
		maxAttempts:  5,
		window:       30 * time.Second,
		cleanupEvery: 5 * time.Minute,
	}

	go tracker.startCleanup()

	return tracker
}

func (t *loginAttemptTracker) startCleanup() {
	ticker := time.NewTicker(t.cleanupEvery)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		expiry := time.Now().Add(-t.window)
		for ip, info := range t.attempts {
			if info.LastAttempt.Before(expiry) {
				delete(t.attempts, ip)
			}
		}
		t.mu.Unlock()
	}
}

// record registers an attempt and reports whether the client is over budget.
func (t *loginAttemptTracker) record(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, exists := t.attempts[ip]
	if !exists || time.Since(info.LastAttempt) > t.window {
		info = &attemptInfo{}
		t.attempts[ip] = info
	}

	info.Count++
	info.LastAttempt = time.Now()

	return info.Count > t.maxAttempts
}

type RequestMiddleware struct {
	logger         *zap.Logger
	attemptTracker *loginAttemptTracker
}

func NewRequestMiddleware(logger *zap.Logger) *RequestMiddleware {
	return &RequestMiddleware{
		logger:         logger,
		attemptTracker: newLoginAttemptTracker(),
	}
}

func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		rm.logger.Info("HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}

// LoginThrottle rejects repeated failed-login bursts from one address.
func (rm *RequestMiddleware) LoginThrottle() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if rm.attemptTracker.record(clientIP) {
			rm.logger.Warn("Throttling login attempts",
				zap.String("client_ip", clientIP))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many login attempts, try again later",
			})
			return
		}
		c.Next()
	}
}

func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rm.logger.Error("Panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
