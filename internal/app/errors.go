package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/simp-lee/sitekit/internal/pkg"
)

// errorPages are the error templates; other statuses use the 500 page.
var errorPages = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusInternalServerError: "errors/500.html",
}

// renderError answers with an error page for browsers (text/html, */* or no
// Accept header) and the JSON envelope for everything else.
func renderError(c *gin.Context, code int, message string) {
	if c.NegotiateFormat(binding.MIMEHTML, binding.MIMEJSON) != binding.MIMEHTML {
		c.JSON(code, pkg.Response{Code: code, Message: message})
		return
	}
	renderErrorPage(c, code)
}

// renderErrorPage falls back to plain text when the template cannot be
// rendered, for instance while a debug-mode template is broken.
func renderErrorPage(c *gin.Context, code int) {
	name, ok := errorPages[code]
	if !ok {
		name = errorPages[http.StatusInternalServerError]
	}
	defer func() {
		_ = recover()
		if !c.Writer.Written() {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.String(code, "%d %s", code, statusLabel(code))
		}
	}()
	c.HTML(code, name, gin.H{"Status": code})
}

func statusLabel(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Error"
}
