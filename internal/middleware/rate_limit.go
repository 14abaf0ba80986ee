package middleware

import (
	"math"
	"net/http"
	"strconv"

	"api-gateway/internal/metrics"
	"api-gateway/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimitMessage is the body sent with every 429 response.
const RateLimitMessage = "Too many requests, please try again later."

// RateLimit admits or rejects the request against the client's fixed window.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Allow(ClientIdentity(c))

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retry := decision.RetryAfter(limiter.Now())
			headers.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))

			m.RateLimitRejected()
			_ = c.Error(ratelimit.ErrRateLimited)
			c.String(http.StatusTooManyRequests, RateLimitMessage)
			c.Abort()
			return
		}

		c.Next()
	}
}
