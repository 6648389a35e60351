package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one slog record per request. Server errors log at
// error level, client errors at warn and everything else at info.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"bytes_written", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if userID, ok := GetUserID(c); ok {
			attrs = append(attrs, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		msg := http.StatusText(status)
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(ctx, msg, attrs...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(ctx, msg, attrs...)
		default:
			logger.InfoContext(ctx, msg, attrs...)
		}
	}
}
