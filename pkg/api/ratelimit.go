package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/OmniLens/OmniLens-sub000/pkg/config"
)

// Idle clients are forgotten after this long so the per-IP map does
// not grow without bound.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// tierLimiter enforces one rate-limit tier across all client IPs. The
// burst equals the per-minute budget, so a quiet client can spend its
// whole minute at once. Stale entries are swept inline on the next
// request past the sweep deadline rather than by a background
// goroutine, which keeps the middleware free of lifecycle management.
type tierLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	perSecond rate.Limit
	burst     int
	nextSweep time.Time
}

func newTierLimiter(tier config.RateLimitTier) *tierLimiter {
	return &tierLimiter{
		clients:   make(map[string]*clientLimiter),
		perSecond: rate.Limit(float64(tier.RequestsPerMinute) / 60.0),
		burst:     tier.RequestsPerMinute,
		nextSweep: time.Now().Add(limiterIdleTTL),
	}
}

func (t *tierLimiter) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	if now.After(t.nextSweep) {
		for addr, cl := range t.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(t.clients, addr)
			}
		}

		t.nextSweep = now.Add(limiterIdleTTL)
	}

	cl, ok := t.clients[ip]
	if !ok {
		cl = &clientLimiter{
			bucket: rate.NewLimiter(t.perSecond, t.burst),
		}
		t.clients[ip] = cl
	}

	cl.lastSeen = now

	return cl.bucket.Allow()
}

// rateLimitMiddleware applies per-IP limiting for one tier.
func (s *server) rateLimitMiddleware(
	tier config.RateLimitTier,
) func(http.Handler) http.Handler {
	limiter := newTierLimiter(tier)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP identifies the caller, preferring the first hop recorded by
// a reverse proxy over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
