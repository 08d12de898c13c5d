package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatrelay/internal/auth"
	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/httputil"
)

const (
	// maxTrackedIPs caps the registration limiter map; crossing it
	// triggers an idle-entry sweep.
	maxTrackedIPs = 10000

	// regIdleTTL marks entries safe to evict: the hourly registration
	// bucket has refilled after this long idle.
	regIdleTTL = time.Hour
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Authenticator resolves the X-API-Key header to a user. Unknown keys
// with a valid shape register a new user on first use; registration is
// throttled per client IP so a key-guessing loop cannot mint accounts.
type Authenticator struct {
	users  repositories.UserRepository
	hasher *auth.Hasher
	logger *slog.Logger

	mu          sync.Mutex
	regLimiters map[string]*ipLimiter
}

// NewAuthenticator creates the API key authentication middleware.
func NewAuthenticator(users repositories.UserRepository, hasher *auth.Hasher, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		users:       users,
		hasher:      hasher,
		logger:      logger,
		regLimiters: make(map[string]*ipLimiter),
	}
}

// Middleware authenticates the request and stores the user in its
// context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Liveness probes carry no credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if !auth.ValidFormat(apiKey) {
			httputil.RespondError(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "missing or malformed API key", r.URL.Path)
			return
		}

		hash := a.hasher.Hash(apiKey)

		user, err := a.users.FindByAPIKeyHash(r.Context(), hash)
		if errors.Is(err, domain.ErrNotFound) {
			if !a.registrationLimiter(clientIP(r)).Allow() {
				httputil.RespondError(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "too many new keys from this address", r.URL.Path)
				return
			}

			user, err = a.users.Create(r.Context(), hash)
			if err == nil {
				a.logger.Info("registered new api key", "user_id", user.ID)
			}
		}
		if err != nil {
			a.logger.Error("authenticate request", "error", err)
			httputil.RespondError(w, http.StatusInternalServerError,
				"INTERNAL_SERVER_ERROR", "authentication failed", r.URL.Path)
			return
		}

		next.ServeHTTP(w, httputil.WithUser(r, user))
	})
}

// registrationLimiter returns the per-IP limiter gating first-use key
// registration.
func (a *Authenticator) registrationLimiter(ip string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	entry, ok := a.regLimiters[ip]
	if !ok {
		if len(a.regLimiters) >= maxTrackedIPs {
			a.evictIdle(now)
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(
			rate.Every(time.Hour/config.RegistrationsPerHour),
			config.RegistrationsPerHour,
		)}
		a.regLimiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle drops limiters whose bucket has fully refilled. Caller
// holds the lock.
func (a *Authenticator) evictIdle(now time.Time) {
	for ip, entry := range a.regLimiters {
		if now.Sub(entry.lastSeen) > regIdleTTL {
			delete(a.regLimiters, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
