// Package middleware provides the HTTP middleware of the exchange server.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter pairs a token bucket with the time it last admitted a
// request, so idle entries can be pruned.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter applies a per-client token-bucket rate limit, keyed by the
// request's remote IP. Entries idle for longer than staleAfter are dropped
// so the map does not grow with every client ever seen.
type IPLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter

	rate  rate.Limit
	burst int

	staleAfter time.Duration
	lastPrune  time.Time
}

// NewIPLimiter creates a limiter allowing r requests per second with the
// given burst per client IP.
func NewIPLimiter(r rate.Limit, b int) *IPLimiter {
	return &IPLimiter{
		clients:    make(map[string]*clientLimiter),
		rate:       r,
		burst:      b,
		staleAfter: 10 * time.Minute,
		lastPrune:  time.Now(),
	}
}

func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > l.staleAfter {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > l.staleAfter {
				delete(l.clients, key)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// RateLimit wraps next with the per-IP limit.
func (l *IPLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "Unable to determine IP", http.StatusBadRequest)
			return
		}
		if !l.allow(ip) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
