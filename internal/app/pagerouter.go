package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/simp-lee/sitekit/internal/metrics"
	"github.com/simp-lee/sitekit/internal/module"
)

var (
	ErrInvalidPath   = errors.New("invalid page path")
	ErrRouteConflict = errors.New("conflicting page paths")
	ErrReservedPath  = errors.New("page path is reserved")
)

// DefaultReservedPrefixes are owned by the host and cannot be used by pages.
var DefaultReservedPrefixes = []string{"/api", "/static", "/_runtime", "/_builds", "/health"}

// servedPageKey carries a *servedPage through the request context so the
// outer engine learns which page the snapshot engine picked.
type servedPageKey struct{}

type servedPage struct {
	name string
}

// newPageEngine registers every page of snap for GET and HEAD on a fresh gin
// engine. gin resolves static segments before parameters and rejects paths
// whose wildcards overlap, so two pages shaped /a/:x and /a/:y conflict.
func newPageEngine(snap *Snapshot, reserved []string, html render.HTMLRender, rec *metrics.Recorder) (*gin.Engine, error) {
	e := gin.New()
	e.HTMLRender = html
	e.NoRoute(func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "not found")
	})

	for _, p := range snap.Manifest.Pages {
		if !strings.HasPrefix(p.Path, "/") {
			return nil, fmt.Errorf("%w %q of page %q: must start with '/'", ErrInvalidPath, p.Path, p.Name)
		}
		if prefix, ok := reservedBy(p.Path, reserved); ok {
			return nil, fmt.Errorf("%w: page %q path %q is under %s", ErrReservedPath, p.Name, p.Path, prefix)
		}
		if err := addPage(e, p, servePage(snap, p, rec)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// addPage turns gin's registration panics into errors.
func addPage(e *gin.Engine, p module.Page, h gin.HandlerFunc) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		msg := fmt.Sprint(r)
		kind := ErrInvalidPath
		if strings.Contains(msg, "conflict") || strings.Contains(msg, "already registered") {
			kind = ErrRouteConflict
		}
		err = fmt.Errorf("%w: page %q path %q: %s", kind, p.Name, p.Path, msg)
	}()
	e.GET(p.Path, h)
	e.HEAD(p.Path, h)
	return nil
}

func servePage(snap *Snapshot, p module.Page, rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sp, ok := c.Request.Context().Value(servedPageKey{}).(*servedPage); ok {
			sp.name = p.Name
		}
		rec.IncPageRequest(p.Name)

		var params map[string]string
		if len(c.Params) > 0 {
			params = make(map[string]string, len(c.Params))
			for _, kv := range c.Params {
				params[kv.Key] = kv.Value
			}
		}
		c.HTML(http.StatusOK, pageTemplate, pageData(snap, p, params))
	}
}

// servePages hands a request to the snapshot's page engine and returns the
// name of the page that answered it, or "" when none did.
func servePages(snap *Snapshot, w http.ResponseWriter, r *http.Request) string {
	sp := &servedPage{}
	snap.Engine.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), servedPageKey{}, sp)))
	return sp.name
}

func reservedBy(p string, reserved []string) (string, bool) {
	for _, prefix := range reserved {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return prefix, true
		}
	}
	return "", false
}
