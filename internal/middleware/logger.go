package middleware

import (
	"net/http"
	"time"

	"api-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// AccessLogSink receives a copy of every access log line.
type AccessLogSink interface {
	Record(entry models.AccessLog) bool
}

// AccessLog emits one structured line per request: timestamp, client address,
// method, URL, status, response time and response size. When sink is non-nil
// the same record is handed to it.
func AccessLog(log *zap.Logger, sink AccessLogSink) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start)
		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}

		entry := models.AccessLog{
			RequestID:      GetRequestID(c),
			Timestamp:      start.UTC(),
			ClientIP:       ClientIdentity(c),
			Method:         c.Request.Method,
			URL:            c.Request.URL.RequestURI(),
			Status:         c.Writer.Status(),
			ResponseTimeMs: float64(elapsed.Microseconds()) / 1000,
			ResponseSize:   size,
			CacheStatus:    c.GetString(CacheStatusKey),
		}

		fields := []zap.Field{
			zap.String("date", entry.Timestamp.Format(isoMillis)),
			zap.String("request_id", entry.RequestID),
			zap.String("remote_addr", entry.ClientIP),
			zap.String("method", entry.Method),
			zap.String("url", entry.URL),
			zap.Int("status", entry.Status),
			zap.Float64("response_time_ms", entry.ResponseTimeMs),
			zap.Int("response_size", entry.ResponseSize),
		}
		if entry.CacheStatus != "" {
			fields = append(fields, zap.String("cache", entry.CacheStatus))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case entry.Status >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		case entry.Status >= http.StatusBadRequest:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request completed", fields...)
		}

		if sink != nil {
			sink.Record(entry)
		}
	}
}
