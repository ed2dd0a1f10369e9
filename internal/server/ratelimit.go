package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRateLimit is spec.md §6.2's "rate-limited 200/min per-IP at the
// app boundary".
const DefaultRateLimit = 200

// ipRateLimiter tracks one token bucket per client IP, evicting buckets
// idle for longer than evictAfter so long-running servers don't
// accumulate one limiter per ever-seen IP forever.
type ipRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rateEntry
	perMinute  int
	evictAfter time.Duration
}

type rateEntry struct {
	limiter *rate.Limiter
	lastHit time.Time
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRateLimit
	}
	return &ipRateLimiter{
		limiters:   make(map[string]*rateEntry),
		perMinute:  perMinute,
		evictAfter: 10 * time.Minute,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)}
		l.limiters[ip] = entry
	}
	entry.lastHit = now

	if len(l.limiters) > 4096 {
		for k, e := range l.limiters {
			if now.Sub(e.lastHit) > l.evictAfter {
				delete(l.limiters, k)
			}
		}
	}
	return entry.limiter.Allow()
}

// withRateLimit rejects requests over DefaultRateLimit (or the configured
// override) per minute per client IP with a 429, the app-boundary
// enforcement spec.md §6.2 calls for ahead of any per-provider limiting
// internal/providers.RateLimiter already does for outbound LLM calls.
func withRateLimit(limiter *ipRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiter.allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
