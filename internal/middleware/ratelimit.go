package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
}

// NewLimiter allows limit requests per window with bursts up to limit.
func NewLimiter(limit int, per time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(per / time.Duration(limit)),
		burst:    limit,
		now:      time.Now,
	}
}

// Allow consumes a token for key. When the bucket is empty it returns false
// and how long until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastGC) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	res := v.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimit throttles per authenticated user, falling back to the client IP
// as resolved through proxies.
func RateLimit(limit int, per time.Duration, proxies TrustedProxies) func(http.Handler) http.Handler {
	return RateLimitWith(NewLimiter(limit, per), proxies)
}

func RateLimitWith(l *Limiter, proxies TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + proxies.ClientIP(r)
			if userID := UserIDFromContext(r.Context()); userID != "" {
				key = "user:" + userID
			}
			if ok, wait := l.Allow(key); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
