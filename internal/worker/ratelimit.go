package worker

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thebtf/campus-drift/internal/metrics"
)

// clientLimiter is one client's token bucket.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	requests int64
	rejected int64
}

// PerClientRateLimiter implements per-client rate limiting.
// A rate of zero or less disables limiting.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	clients         map[string]*clientLimiter
	now             func() time.Time
	rate            float64
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a new per-client rate limiter.
func NewPerClientRateLimiter(rps float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		rate:            rps,
		burst:           max(burst, 1),
		clients:         make(map[string]*clientLimiter),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

func (pcrl *PerClientRateLimiter) limit() rate.Limit {
	if pcrl.rate <= 0 {
		return rate.Inf
	}
	return rate.Limit(pcrl.rate)
}

// SetRate changes the rate and burst for every client, existing or new.
func (pcrl *PerClientRateLimiter) SetRate(rps float64, burst int) {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	pcrl.rate = rps
	pcrl.burst = max(burst, 1)
	now := pcrl.now()
	for _, c := range pcrl.clients {
		c.limiter.SetLimitAt(now, pcrl.limit())
		c.limiter.SetBurstAt(now, pcrl.burst)
	}
}

// cleanupLocked removes idle limiters. Must be called with lock held.
func (pcrl *PerClientRateLimiter) cleanupLocked(now time.Time) {
	for key, c := range pcrl.clients {
		if now.Sub(c.lastSeen) > pcrl.maxIdleTime {
			delete(pcrl.clients, key)
		}
	}
	pcrl.lastCleanup = now
}

// Allow checks if a request from the given client should be allowed.
func (pcrl *PerClientRateLimiter) Allow(clientKey string) bool {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	now := pcrl.now()
	if now.Sub(pcrl.lastCleanup) > pcrl.cleanupInterval {
		pcrl.cleanupLocked(now)
	}

	c, exists := pcrl.clients[clientKey]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(pcrl.limit(), pcrl.burst)}
		pcrl.clients[clientKey] = c
	}
	c.lastSeen = now
	c.requests++

	if c.limiter.AllowN(now, 1) {
		return true
	}
	c.rejected++
	return false
}

// Stats returns aggregate statistics.
func (pcrl *PerClientRateLimiter) Stats() map[string]any {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	var totalRequests, totalRejected int64
	for _, c := range pcrl.clients {
		totalRequests += c.requests
		totalRejected += c.rejected
	}

	return map[string]any{
		"rate":           pcrl.rate,
		"burst":          pcrl.burst,
		"active_clients": len(pcrl.clients),
		"total_requests": totalRequests,
		"total_rejected": totalRejected,
	}
}

// clientKey identifies the caller. RealIP has already rewritten RemoteAddr
// from X-Real-IP / X-Forwarded-For when present.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// PerClientRateLimitMiddleware creates middleware that applies per-client rate limiting.
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				metrics.APIRateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
