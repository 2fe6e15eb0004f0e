package middleware

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessLog writes one record per request. Requests for skipPaths (the
// health and metrics endpoints) are not logged. Page responses also carry
// the page name and the build id that served them.
func AccessLog(log *slog.Logger, skipPaths ...string) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if slices.Contains(skipPaths, path) {
			return
		}
		status := c.Writer.Status()

		attrs := make([]slog.Attr, 0, 9)
		attrs = append(attrs,
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Int("bytes", max(c.Writer.Size(), 0)),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, slog.String("route", route))
		}
		if page := c.GetString(PageKey); page != "" {
			attrs = append(attrs, slog.String("page", page))
		}
		if id := c.GetString(BuildIDKey); id != "" {
			attrs = append(attrs, slog.String("build_id", id))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		log.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}
