package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/observability"
)

// Quota is a fixed-window request allowance for one route
type Quota struct {
	// Name identifies the route in keys, logs and metrics
	Name string
	// Limit is the max requests allowed in one window
	Limit int
	// Window is the length of a counting window
	Window time.Duration
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

func newDecision(count int64, ttl time.Duration, quota Quota) Decision {
	remaining := quota.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if ttl <= 0 {
		ttl = quota.Window
	}
	return Decision{
		Allowed:    count <= int64(quota.Limit),
		Count:      count,
		Limit:      quota.Limit,
		Remaining:  remaining,
		ResetAfter: ttl,
	}
}

// Limiter counts requests per key in fixed windows
type Limiter interface {
	Allow(ctx context.Context, key string, quota Quota) (Decision, error)
}

// MemoryLimiter implements Limiter in-process for single-node deployments
type MemoryLimiter struct {
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

type window struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryLimiter creates a new in-process limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow increments the counter for key, opening a new window if the previous one expired
func (l *MemoryLimiter) Allow(_ context.Context, key string, quota Quota) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(quota.Window)}
		l.windows[key] = w
	}
	w.count++

	return newDecision(w.count, w.expiresAt.Sub(now), quota), nil
}

// Cleanup removes expired windows
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.expiresAt) {
			delete(l.windows, key)
		}
	}
}

// StartCleanup runs Cleanup on every tick until ctx is done
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// RateLimitMiddleware rejects requests above quota with 429, counting per route and client IP.
// Limiter errors are logged and the request is let through.
func RateLimitMiddleware(limiter Limiter, quota Quota, proxies TrustedProxies, logger logrus.FieldLogger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := quota.Name + ":" + proxies.ClientIP(r)

			decision, err := limiter.Allow(r.Context(), key, quota)
			if err != nil {
				observability.LoggerFromContext(r.Context(), logger).
					WithError(err).
					WithField("route", quota.Name).
					Warn("rate limiter unavailable, allowing request")
				metrics.RecordRateLimit(quota.Name, "error")
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				metrics.RecordRateLimit(quota.Name, "rejected")
				rateLimitExceeded(w, decision)
				return
			}

			metrics.RecordRateLimit(quota.Name, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.ResetAfter).Unix(), 10))
}

func retryAfterSeconds(d Decision) int {
	secs := int((d.ResetAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func rateLimitExceeded(w http.ResponseWriter, d Decision) {
	retryAfter := retryAfterSeconds(d)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       "Too Many Requests",
		"retry_after": retryAfter,
	})
}

// TrustedProxies are the networks whose forwarding headers are believed
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses CIDRs or bare IPs
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var proxies TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

func (t TrustedProxies) trusts(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address the quota is charged to. Forwarding headers
// count only when the peer is a trusted proxy; X-Forwarded-For is walked from
// the right and the first untrusted hop wins.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !t.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !t.trusts(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
