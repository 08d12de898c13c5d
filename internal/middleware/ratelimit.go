package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatrelay/internal/config"
	"chatrelay/internal/httputil"
)

const (
	// maxTrackedUsers caps the limiter map; crossing it triggers an
	// idle-entry sweep.
	maxTrackedUsers = 10000

	// limiterIdleTTL marks entries safe to evict: a bucket idle this
	// long has refilled completely, so dropping it loses no state.
	limiterIdleTTL = 10 * time.Minute
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-user request budget with a token bucket
// per authenticated user. It must run after the authenticator.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*userLimiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates the per-user request limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*userLimiter),
		limit:    rate.Every(time.Minute / config.RateLimitPerMinute),
		burst:    config.RateLimitPerMinute,
	}
}

// Middleware applies the rate limit and reports the remaining budget
// in response headers.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		user := httputil.GetUser(r)
		if user == nil {
			// Authenticator did not run; fail closed.
			httputil.RespondError(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "no authenticated user", r.URL.Path)
			return
		}

		limiter := l.limiterFor(user.ID)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))

		if !limiter.Allow() {
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.RespondError(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "request rate limit exceeded", r.URL.Path)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiterFor(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[userID]
	if !ok {
		if len(l.limiters) >= maxTrackedUsers {
			l.evictIdle(now)
		}
		entry = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle drops limiters whose bucket has fully refilled. Caller
// holds the lock.
func (l *RateLimiter) evictIdle(now time.Time) {
	for id, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, id)
		}
	}
}
