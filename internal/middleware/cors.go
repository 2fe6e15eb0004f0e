package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSOptions configures CORS. Empty Methods and Headers fall back to what
// the build API and the htmx history page send.
type CORSOptions struct {
	// Origins allowed to call; "*" allows any. Empty denies every origin.
	Origins     []string
	Methods     []string
	Headers     []string
	Credentials bool
	MaxAge      time.Duration
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{
		"Accept", "Content-Type", requestIDHeader, csrfHeader,
		"HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger",
	}
	// Headers htmx and API clients read from cross-origin responses.
	corsExposeHeaders = strings.Join([]string{requestIDHeader, "HX-Trigger", "HX-Redirect", "HX-Reswap"}, ", ")
)

// CORS answers preflight requests with 204 and adds the allow headers to
// requests from an allowed origin. Requests from other origins pass through
// untouched, leaving the browser to block them.
func CORS(opts CORSOptions) gin.HandlerFunc {
	methods := strings.Join(cmpOr(opts.Methods, defaultCORSMethods), ", ")
	headers := strings.Join(cmpOr(opts.Headers, defaultCORSHeaders), ", ")
	anyOrigin := slices.Contains(opts.Origins, "*")
	var maxAge string
	if opts.MaxAge > 0 {
		maxAge = strconv.Itoa(int(opts.MaxAge / time.Second))
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")
		if !anyOrigin && !slices.Contains(opts.Origins, origin) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		// a wildcard cannot be combined with credentials, so echo the origin
		if anyOrigin && !opts.Credentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if opts.Credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method != http.MethodOptions || c.GetHeader("Access-Control-Request-Method") == "" {
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			c.Next()
			return
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func cmpOr(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
