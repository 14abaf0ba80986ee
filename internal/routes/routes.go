package routes

import (
	"net/http"

	"api-gateway/internal/auth"
	"api-gateway/internal/handlers"
	"api-gateway/internal/metrics"
	"api-gateway/internal/middleware"
	"api-gateway/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the components the router wires together.
type Dependencies struct {
	Proxy         *handlers.ProxyHandler
	Authenticator *auth.APIKeyAuthenticator
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Metrics
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	AccessLog middleware.AccessLogSink
}

// SetupRoutes builds the gin engine. The proxy route runs, in order:
// API key check, rate limit, then the cache/upstream handler.
func SetupRoutes(deps Dependencies) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(
		middleware.RequestID(),
		middleware.AccessLog(deps.Logger, deps.AccessLog),
		middleware.HTTPMetrics(deps.Metrics),
		gin.Recovery(),
	)

	// Health check endpoint
	ginRouter.GET("/health", handlers.Health)

	if deps.Gatherer != nil {
		ginRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := ginRouter.Group("/api")
	{
		api.GET("/proxy",
			middleware.APIKeyMiddleware(deps.Authenticator, deps.Metrics),
			middleware.RateLimit(deps.Limiter, deps.Metrics),
			deps.Proxy.Proxy,
		)
	}

	ginRouter.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	return ginRouter
}
