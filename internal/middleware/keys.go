// Package middleware holds the gin middleware shared by every sitekit route:
// request ids, access logging, panic recovery, CORS and CSRF.
package middleware

import "github.com/gin-gonic/gin"

// Keys stored on the gin.Context.
const (
	RequestIDKey = "request_id"
	// BuildIDKey is the build id of the snapshot that answered the request.
	BuildIDKey = "build_id"
	// PageKey is the name of the page that answered the request.
	PageKey = "page"

	csrfTokenKey = "csrf_token"
)

// GetRequestID returns the id RequestID assigned, or "".
func GetRequestID(c *gin.Context) string { return c.GetString(RequestIDKey) }

// GetCSRFToken returns the token CSRF issued or accepted for this request,
// for templates that render forms.
func GetCSRFToken(c *gin.Context) string { return c.GetString(csrfTokenKey) }
