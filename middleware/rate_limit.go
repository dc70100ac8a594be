package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Each key gets its own limiter plus lastSeen for cleanup.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key (user id or client IP).
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	reqPerMin int
	burst     int
	ttl       time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows reqPerMin requests per minute per key with the given
// burst. Keys idle for longer than ttl are forgotten.
func NewRateLimiter(reqPerMin, burst int, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors:  make(map[string]*visitor),
		reqPerMin: reqPerMin,
		burst:     burst,
		ttl:       ttl,
		stop:      make(chan struct{}),
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}

	// requests per minute -> rate.Limit (per second)
	rps := float64(rl.reqPerMin) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), rl.burst)
	rl.visitors[key] = &visitor{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.ttl {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func rateLimit(rl *RateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too Many Requests",
				"hint":    "Please slow down and try again shortly.",
			})
			return
		}
		c.Next()
	}
}

// RateLimitByUser limits authenticated routes per user. It must run after
// AuthJWT.
func RateLimitByUser(rl *RateLimiter) gin.HandlerFunc {
	return rateLimit(rl, func(c *gin.Context) string {
		return "user:" + strconv.FormatUint(uint64(CurrentUserID(c)), 10)
	})
}

// RateLimitByIP limits anonymous routes such as login.
func RateLimitByIP(rl *RateLimiter) gin.HandlerFunc {
	return rateLimit(rl, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}
