package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// captureLog returns a JSON logger set up like config.BuildLoggerOpts sets
// up the server's, and a function decoding every record it wrote.
func captureLog(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logger.New(
		logger.WithConsoleWriter(&buf),
		logger.WithConsoleFormat(logger.FormatJSON),
		logger.WithConsoleColor(false),
		logger.WithLevel(slog.LevelDebug),
		logger.WithMiddleware(logger.ContextMiddleware()),
	)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log.Logger, func() []map[string]any {
		var out []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				t.Fatalf("decode log line %q: %v", line, err)
			}
			out = append(out, rec)
		}
		return out
	}
}

// siteRouter mounts the routes a sitekit server has: health, the build API
// and a page answered from NoRoute with its page and build id set.
func siteRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/v1/builds/:id", func(c *gin.Context) {
		if c.Param("id") == "0" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid build id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"build_id": c.Param("id")})
	})
	r.POST("/api/v1/builds", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{}) })
	r.GET("/_builds/boom", func(c *gin.Context) { panic("template exploded") })
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/docs/") {
			c.Set(BuildIDKey, "b-42")
			c.Set(PageKey, "DocsPage")
			c.String(http.StatusOK, "docs")
			return
		}
		c.String(http.StatusNotFound, "not found")
	})
	return r
}

func serve(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
