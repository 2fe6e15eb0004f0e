package middleware

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic in a handler into a logged error and a 500. The
// response is written by render, which sees an aborted context; a nil render
// answers with an empty 500. A panic caused by the client hanging up is
// logged at warn level and gets no response.
func Recovery(log *slog.Logger, render func(c *gin.Context)) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			if err, ok := rec.(error); ok && brokenPipe(err) {
				log.WarnContext(ctx, "client went away",
					slog.String("path", c.Request.URL.Path),
					slog.Any("error", err),
				)
				c.Abort()
				return
			}

			log.ErrorContext(ctx, "panic recovered",
				slog.Any("panic", rec),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("page", c.GetString(PageKey)),
				slog.String("stack", string(debug.Stack())),
			)
			c.Abort()
			if c.Writer.Written() {
				return
			}
			if render == nil {
				c.Status(500)
				return
			}
			render(c)
		}()
		c.Next()
	}
}

func brokenPipe(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
	}
	return false
}
