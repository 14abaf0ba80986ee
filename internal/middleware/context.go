package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
	// CacheStatusKey is the gin context key holding HIT or MISS for proxied requests.
	CacheStatusKey = "cache_status"
)

// GetRequestID retrieves the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// ClientIdentity is the address used to scope rate limits: the direct peer
// address, ignoring forwarding headers.
func ClientIdentity(c *gin.Context) string {
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return c.Request.RemoteAddr
}
