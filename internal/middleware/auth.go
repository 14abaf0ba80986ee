package middleware

import (
	"net/http"

	"api-gateway/internal/auth"
	"api-gateway/internal/metrics"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware validates the x-api-key header against the configured
// credential. Rejected requests stop here: nothing later in the chain runs.
func APIKeyMiddleware(authenticator *auth.APIKeyAuthenticator, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticator.Verify(c.GetHeader(auth.HeaderName)); err != nil {
			m.AuthFailure()
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		c.Next()
	}
}
