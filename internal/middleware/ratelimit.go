package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/sirupsen/logrus"
)

// fallbackIdentity is used when no client address can be derived
const fallbackIdentity = "127.0.0.1"

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(identity string) bool
	Reset(identity string)
}

// window tracks request volume for one identity
type window struct {
	count int
	start time.Time
}

// FixedWindowLimiter bounds request throughput per client identity. Each
// identity gets a counter that resets once the configured window elapses;
// requests past the limit inside a live window are rejected. State is
// process-local, so a restart clears all counters.
type FixedWindowLimiter struct {
	enabled bool
	limit   int
	length  time.Duration
	windows map[string]*window
	mu      sync.Mutex
	logger  *logrus.Logger
	now     func() time.Time

	cleanupInterval time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.Config, logger *logrus.Logger) RateLimiter {
	if !cfg.RateLimit.Enabled {
		return &FixedWindowLimiter{enabled: false}
	}

	rl := &FixedWindowLimiter{
		enabled:         true,
		limit:           cfg.RateLimit.Limit,
		length:          cfg.RateLimit.Window,
		windows:         make(map[string]*window),
		logger:          logger,
		now:             time.Now,
		cleanupInterval: time.Hour,
	}

	go rl.cleanup()

	return rl
}

// Allow checks whether the identity still has budget in its current window.
// The first request from an identity, or the first after its window expired,
// opens a fresh window with count 1.
func (r *FixedWindowLimiter) Allow(identity string) bool {
	if !r.enabled {
		return true
	}
	if identity == "" {
		identity = fallbackIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, exists := r.windows[identity]
	if !exists || now.Sub(w.start) >= r.length {
		r.windows[identity] = &window{count: 1, start: now}
		return true
	}

	w.count++
	allowed := w.count <= r.limit

	if !allowed {
		r.logger.WithFields(logrus.Fields{
			"identity": identity,
			"count":    w.count,
		}).Warn("Rate limit exceeded")
	}

	return allowed
}

// Reset clears the window for an identity
func (r *FixedWindowLimiter) Reset(identity string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.windows, identity)
	r.mu.Unlock()
}

// cleanup drops expired windows so the map does not grow without bound
// across distinct identities
func (r *FixedWindowLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		now := r.now()
		for identity, w := range r.windows {
			if now.Sub(w.start) >= r.length {
				delete(r.windows, identity)
			}
		}
		r.mu.Unlock()
	}
}

// ClientIP derives the rate-limit identity from the request: the first
// forwarded hop when behind a proxy, otherwise the remote address host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return fallbackIdentity
	}
	return host
}
