package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"api-gateway/internal/metrics"
	"api-gateway/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheHit  = "HIT"
	cacheMiss = "MISS"
)

// PayloadCache stores upstream responses keyed by upstream URL.
type PayloadCache interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, payload json.RawMessage)
}

// Fetcher performs the outbound call to the upstream API.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// ProxyOptions wires a ProxyHandler.
type ProxyOptions struct {
	// TargetURL is the fixed upstream endpoint. It doubles as the cache key.
	TargetURL string
	Cache     PayloadCache
	Upstream  Fetcher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// ProxyHandler serves the single gateway route. Authentication and rate
// limiting run before it in the middleware chain; it only deals with the
// cache and the upstream.
type ProxyHandler struct {
	targetURL string
	cache     PayloadCache
	upstream  Fetcher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// group collapses concurrent misses into one upstream call.
	group singleflight.Group
}

// NewProxyHandler builds a ProxyHandler from opts.
func NewProxyHandler(opts ProxyOptions) (*ProxyHandler, error) {
	if opts.TargetURL == "" {
		return nil, errors.New("proxy handler: target URL is required")
	}
	if opts.Cache == nil || opts.Upstream == nil {
		return nil, errors.New("proxy handler: cache and upstream are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProxyHandler{
		targetURL: opts.TargetURL,
		cache:     opts.Cache,
		upstream:  opts.Upstream,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

/*
*
Proxy handles GET /api/proxy
Serves the cached upstream payload while it is fresh, otherwise calls the
upstream, caches a successful result and returns it. Failures are never cached.
*/
func (h *ProxyHandler) Proxy(c *gin.Context) {
	if payload, ok := h.cache.Get(h.targetURL); ok {
		h.metrics.CacheHit()
		h.respond(c, payload, cacheHit)
		return
	}
	h.metrics.CacheMiss()

	payload, err := h.fetch(c.Request.Context())
	if err != nil {
		h.logger.Error("Error calling external API",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("url", h.targetURL),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error calling external API",
		})
		return
	}

	h.respond(c, payload, cacheMiss)
}

func (h *ProxyHandler) fetch(ctx context.Context) (json.RawMessage, error) {
	v, err, _ := h.group.Do(h.targetURL, func() (any, error) {
		// a concurrent caller may have filled the cache while this one waited
		if payload, ok := h.cache.Get(h.targetURL); ok {
			return payload, nil
		}

		// the call is shared, so one caller disconnecting must not cancel it;
		// the upstream client's own timeout still bounds it
		start := time.Now()
		payload, err := h.upstream.Fetch(context.WithoutCancel(ctx), h.targetURL)
		h.metrics.UpstreamCall(time.Since(start).Seconds(), err)
		if err != nil {
			return nil, err
		}

		h.cache.Set(h.targetURL, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (h *ProxyHandler) respond(c *gin.Context, payload json.RawMessage, status string) {
	c.Set(middleware.CacheStatusKey, status)
	c.Header("X-Cache", status)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}
