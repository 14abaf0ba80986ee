package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"api-gateway/internal/auth"
	"api-gateway/internal/cache"
	"api-gateway/internal/handlers"
	"api-gateway/internal/metrics"
	"api-gateway/internal/middleware"
	"api-gateway/internal/ratelimit"
	"api-gateway/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testKey = "s3cret"

type gateway struct {
	router        *gin.Engine
	upstreamCalls *atomic.Int32
	limiter       *ratelimit.Limiter
	now           *time.Time
}

func newGateway(t *testing.T, rateLimit int, cacheTTL time.Duration) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"gauravmeee"}`))
	}))
	t.Cleanup(srv.Close)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	reg := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Options{Registerer: reg})
	require.NoError(t, err)

	limiter, err := ratelimit.New(ratelimit.Options{Max: rateLimit, Window: 60000 * time.Millisecond, Now: clock})
	require.NoError(t, err)

	proxy, err := handlers.NewProxyHandler(handlers.ProxyOptions{
		TargetURL: srv.URL,
		Cache:     cache.New[json.RawMessage](cache.Options{TTL: cacheTTL, Now: clock}),
		Upstream:  upstream.NewClient(upstream.Options{Timeout: time.Second}),
		Metrics:   m,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	r := SetupRoutes(Dependencies{
		Proxy:         proxy,
		Authenticator: auth.NewAPIKeyAuthenticator(testKey),
		Limiter:       limiter,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        zaptest.NewLogger(t),
	})
	return &gateway{router: r, upstreamCalls: calls, limiter: limiter, now: &now}
}

func (g *gateway) call(key, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/proxy", nil)
	req.RemoteAddr = remoteAddr
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	g := newGateway(t, 5, time.Minute)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	g.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	g := newGateway(t, 5, time.Minute)
	g.call(testKey, "192.0.2.1:1000")

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "gateway_upstream_requests_total")
	require.Contains(t, w.Body.String(), "gateway_http_requests_total")
}

func TestProxy_RateLimitScenario(t *testing.T) {
	g := newGateway(t, 2, 300*time.Second)

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, g.call(testKey, "192.0.2.1:1000").Code)
		*g.now = g.now.Add(200 * time.Millisecond)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := g.call(testKey, "192.0.2.1:1000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, middleware.RateLimitMessage, w.Body.String())
}

func TestProxy_WindowElapses(t *testing.T) {
	g := newGateway(t, 1, 300*time.Second)

	require.Equal(t, http.StatusOK, g.call(testKey, "192.0.2.1:1000").Code)
	require.Equal(t, http.StatusTooManyRequests, g.call(testKey, "192.0.2.1:1000").Code)

	*g.now = g.now.Add(60 * time.Second)
	require.Equal(t, http.StatusOK, g.call(testKey, "192.0.2.1:1000").Code)
}

func TestProxy_UnauthorizedConsumesNothing(t *testing.T) {
	g := newGateway(t, 1, 300*time.Second)

	for _, key := range []string{"", "wrong", "wrong-again"} {
		w := g.call(key, "192.0.2.1:1000")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
	require.Zero(t, g.limiter.Tracked(), "unauthenticated requests must not touch the limiter")
	require.Equal(t, int32(0), g.upstreamCalls.Load())

	require.Equal(t, http.StatusOK, g.call(testKey, "192.0.2.1:1000").Code)
}

func TestProxy_CacheScenario(t *testing.T) {
	g := newGateway(t, 5, 300*time.Second)

	first := g.call(testKey, "192.0.2.1:1000")
	require.Equal(t, http.StatusOK, first.Code)
	require.JSONEq(t, `{"login":"gauravmeee"}`, first.Body.String())
	require.Equal(t, int32(1), g.upstreamCalls.Load())

	// a different client shares the same cache entry
	second := g.call(testKey, "198.51.100.2:2000")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, int32(1), g.upstreamCalls.Load())

	*g.now = g.now.Add(300 * time.Second)
	third := g.call(testKey, "192.0.2.1:1000")
	require.Equal(t, http.StatusOK, third.Code)
	require.Equal(t, int32(2), g.upstreamCalls.Load(), "expired entry must trigger a new upstream call")
}

func TestUnknownRoute(t *testing.T) {
	g := newGateway(t, 5, time.Minute)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/other", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
