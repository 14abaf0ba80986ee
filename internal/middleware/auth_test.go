package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"api-gateway/internal/auth"
	"api-gateway/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(metrics.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return m
}

func TestAPIKeyMiddleware_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(auth.NewAPIKeyAuthenticator("s3cret"), nil))
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("x-api-key", "s3cret")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyMiddleware_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for name, key := range map[string]string{"missing": "", "wrong": "guess"} {
		t.Run(name, func(t *testing.T) {
			m := newTestMetrics(t)
			reached := false
			r := gin.New()
			r.Use(APIKeyMiddleware(auth.NewAPIKeyAuthenticator("s3cret"), m))
			r.GET("/protected", func(c *gin.Context) {
				reached = true
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if key != "" {
				req.Header.Set("X-Api-Key", key)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			require.False(t, reached, "handler must not run after auth failure")
			require.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures))
		})
	}
}
