package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rolodex/pkg/observability"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

var testQuota = Quota{Name: "contacts.list", Limit: 5, Window: time.Minute}

func TestFixedWindowLimiter_Allow(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := limiter.Allow(ctx, "contacts.list:10.0.0.1", testQuota)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(i), d.Count)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "contacts.list:10.0.0.1", testQuota)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "6th request should be rejected")
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.ResetAfter, time.Duration(0))
	assert.LessOrEqual(t, d.ResetAfter, time.Minute)

	assert.True(t, mr.Exists("ratelimit:contacts.list:10.0.0.1"))

	mr.FastForward(testQuota.Window + time.Second)

	d, err = limiter.Allow(ctx, "contacts.list:10.0.0.1", testQuota)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "request after the window should be allowed")
	assert.Equal(t, int64(1), d.Count)
}

func TestFixedWindowLimiter_ExpirySetOnFirstHitOnly(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "rl")
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k", testQuota)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)

	for i := 0; i < 10; i++ {
		_, err := limiter.Allow(ctx, "k", testQuota)
		require.NoError(t, err)
	}

	// Rejected calls must not push the window out
	ttl := mr.TTL("rl:k")
	assert.LessOrEqual(t, ttl, 20*time.Second)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(21 * time.Second)
	d, err := limiter.Allow(ctx, "k", testQuota)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_KeysIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "a", testQuota)
		require.NoError(t, err)
	}

	d, err := limiter.Allow(ctx, "a", testQuota)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = limiter.Allow(ctx, "b", testQuota)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_Concurrency(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "")
	quota := Quota{Name: "burst", Limit: 20, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(context.Background(), "shared", quota)
			if err != nil || !d.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, allowed)
}

func TestFixedWindowLimiter_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "")
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k", testQuota)
	assert.Error(t, err)
	assert.Error(t, limiter.HealthCheck(context.Background()))
}

func TestFixedWindowLimiter_HealthCheck(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewFixedWindowLimiter(client, "")

	assert.NoError(t, limiter.HealthCheck(context.Background()))
}

func TestMemoryLimiter_Allow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "k", testQuota)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Allow(ctx, "k", testQuota)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.ResetAfter)

	now = now.Add(30 * time.Second)
	d, err = limiter.Allow(ctx, "k", testQuota)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.ResetAfter)

	now = now.Add(31 * time.Second)
	d, err = limiter.Allow(ctx, "k", testQuota)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "old", Quota{Limit: 1, Window: time.Second})
	_, _ = limiter.Allow(context.Background(), "fresh", Quota{Limit: 1, Window: time.Hour})

	now = now.Add(2 * time.Second)
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.windows, "old")
	assert.Contains(t, limiter.windows, "fresh")
}

func TestMemoryLimiter_StartCleanup(t *testing.T) {
	limiter := NewMemoryLimiter()
	_, _ = limiter.Allow(context.Background(), "k", Quota{Limit: 1, Window: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		return len(limiter.windows) == 0
	}, time.Second, 5*time.Millisecond)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, Quota) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func newTestHandler(limiter Limiter, quota Quota, metrics *observability.Metrics) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimitMiddleware(limiter, quota, nil, observability.NewNopLogger(), metrics)(next)
}

func TestRateLimitMiddleware_SixthRequestRejected(t *testing.T) {
	mr, client := setupTestRedis(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := newTestHandler(NewFixedWindowLimiter(client, ""), testQuota, metrics)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter >= 1 && retryAfter <= 60)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Too Many Requests", body["error"])
	assert.Equal(t, float64(retryAfter), body["retry_after"])

	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.RateLimitDecisionsTotal.WithLabelValues("contacts.list", "allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitDecisionsTotal.WithLabelValues("contacts.list", "rejected")))

	mr.FastForward(testQuota.Window + time.Second)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_DifferentIPsIndependent(t *testing.T) {
	quota := Quota{Name: "contacts.create", Limit: 1, Window: 3 * time.Minute}
	handler := newTestHandler(NewMemoryLimiter(), quota, nil)

	first := httptest.NewRequest(http.MethodPost, "/api/contacts", nil)
	first.RemoteAddr = "192.0.2.1:1234"
	second := httptest.NewRequest(http.MethodPost, "/api/contacts", nil)
	second.RemoteAddr = "192.0.2.2:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := newTestHandler(failingLimiter{}, testQuota, metrics)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}

	assert.Equal(t, float64(10), testutil.ToFloat64(metrics.RateLimitDecisionsTotal.WithLabelValues("contacts.list", "error")))
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		reset time.Duration
		want  int
	}{
		{"zero rounds up to one", 0, 1},
		{"sub-second rounds up", 300 * time.Millisecond, 1},
		{"whole seconds", 42 * time.Second, 42},
		{"fractional rounds up", 42*time.Second + time.Millisecond, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryAfterSeconds(Decision{ResetAfter: tt.reset}))
		})
	}
}

func TestRateLimitMiddleware_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	quota := Quota{Name: "contacts.create", Limit: 1, Window: 3 * time.Minute}
	handler := newTestHandler(NewMemoryLimiter(), quota, nil)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/contacts", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "request %d", i+1)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "2001:db8::1"})
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	assert.True(t, proxies.trusts("10.1.2.3"))
	assert.True(t, proxies.trusts("192.0.2.10"))
	assert.False(t, proxies.trusts("192.0.2.11"))
	assert.True(t, proxies.trusts("2001:db8::1"))
	assert.False(t, proxies.trusts("not-an-ip"))

	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		proxies    TrustedProxies
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr",
			proxies:    proxies,
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "remote addr without port",
			proxies:    proxies,
			remoteAddr: "192.0.2.1",
			want:       "192.0.2.1",
		},
		{
			name:       "no trusted proxies ignores headers",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7",
				"X-Real-IP":       "198.51.100.4",
			},
			want: "10.0.0.1",
		},
		{
			name:       "untrusted peer ignores headers",
			proxies:    proxies,
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			proxies:    proxies,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for skips trusted hops from the right",
			proxies:    proxies,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9, 203.0.113.7, 10.0.0.2, 10.0.0.3"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for of only proxies uses first hop",
			proxies:    proxies,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.2"},
			want:       "10.0.0.5",
		},
		{
			name:       "x-real-ip",
			proxies:    proxies,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "x-forwarded-for wins over x-real-ip",
			proxies:    proxies,
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7",
				"X-Real-IP":       "198.51.100.4",
			},
			want: "203.0.113.7",
		},
		{
			name:       "ipv6 remote addr",
			proxies:    proxies,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}
