package rpc

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter tracks one source address. Idle entries are evicted so the
// map does not grow without bound under address churn.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

const limiterIdleTTL = 10 * time.Minute

func newRateLimiters(perSecond float64, burst int) *rateLimiters {
	if perSecond <= 0 {
		perSecond = 25
	}
	if burst <= 0 {
		burst = 50
	}
	return &rateLimiters{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(perSecond),
		burst:   burst,
	}
}

// Allow reports whether the client may proceed, refilling its bucket at the
// configured rate.
func (r *rateLimiters) Allow(clientIP string) bool {
	if r == nil {
		return true
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.clients[clientIP]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.clients[clientIP] = entry
	}
	entry.lastSeen = now
	if len(r.clients) > 1024 {
		for ip, stale := range r.clients {
			if now.Sub(stale.lastSeen) > limiterIdleTTL {
				delete(r.clients, ip)
			}
		}
	}
	return entry.limiter.Allow()
}

// resolveClientIP extracts the caller address, honouring X-Forwarded-For only
// when the server was explicitly told to trust proxy headers.
func (s *Server) resolveClientIP(r *http.Request) (string, error) {
	if s.trustProxyHeaders {
		forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String(), nil
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if ip := net.ParseIP(strings.TrimSpace(r.RemoteAddr)); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("rpc: unable to resolve client address %q", r.RemoteAddr)
	}
	return host, nil
}
