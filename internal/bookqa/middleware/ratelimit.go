package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const rateLimitWindow = time.Minute

// RateLimiter enforces fixed-window per-caller limits backed by Redis.
// When Redis is unavailable it degrades to per-process token buckets with
// the same rates, which is weaker across replicas but never fails open
// entirely.
type RateLimiter struct {
	rdb *goredis.Client

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	degraded sync.Once
}

// NewRateLimiter creates a rate limiter. rdb may be nil to force the
// in-process fallback.
func NewRateLimiter(rdb *goredis.Client) *RateLimiter {
	return &RateLimiter{
		rdb:   rdb,
		local: make(map[string]*rate.Limiter),
	}
}

// Limit returns middleware enforcing perMinute requests per caller for the
// given scope. Over-limit requests get 429 with a Retry-After header.
func (rl *RateLimiter) Limit(scope string, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerID(c)

		allowed, retryAfter := rl.allow(c, scope, caller, perMinute)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limited",
				"message": fmt.Sprintf("rate limit exceeded for %s, retry after %ds", scope, retryAfter),
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, scope, caller string, perMinute int) (bool, int) {
	if rl.rdb != nil {
		window := time.Now().Unix() / int64(rateLimitWindow.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, caller, window)

		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, rateLimitWindow)
		if _, err := pipe.Exec(c.Request.Context()); err == nil {
			if incr.Val() > int64(perMinute) {
				ttl, _ := rl.rdb.TTL(c.Request.Context(), key).Result()
				retry := int(ttl.Seconds())
				if retry <= 0 {
					retry = int(rateLimitWindow.Seconds())
				}
				return false, retry
			}
			return true, 0
		}
		rl.degraded.Do(func() {
			logger.Warnw("redis unavailable, rate limiting degraded to per-process limiters")
		})
	}

	if !rl.localLimiter(scope, caller, perMinute).Allow() {
		return false, int(rateLimitWindow.Seconds())
	}
	return true, 0
}

func (rl *RateLimiter) localLimiter(scope, caller string, perMinute int) *rate.Limiter {
	key := scope + ":" + caller
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.local[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/rateLimitWindow.Seconds()), perMinute)
		rl.local[key] = limiter
	}
	return limiter
}
