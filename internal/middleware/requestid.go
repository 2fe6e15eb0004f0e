package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a UUID, echoed in X-Request-ID and
// attached to every log record written with the request context. An
// incoming X-Request-ID is reused only when trustUpstream is set and it
// parses as a UUID.
func RequestID(trustUpstream bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if trustUpstream {
			if u, err := uuid.Parse(c.GetHeader(requestIDHeader)); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			logger.WithContextAttrs(c.Request.Context(), slog.String(RequestIDKey, id)),
		)
		c.Next()
	}
}
