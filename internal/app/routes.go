package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/sitekit/internal/build"
	"github.com/simp-lee/sitekit/internal/metrics"
	"github.com/simp-lee/sitekit/internal/middleware"
	"github.com/simp-lee/sitekit/internal/module"
	"github.com/simp-lee/sitekit/internal/pkg"
	"github.com/simp-lee/sitekit/web"
)

// Module is an optional feature, like build history, that mounts its own
// handlers under /api/v1 and on the CSRF-protected page group.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup)
}

// RouteDeps is what RegisterRoutes mounts.
type RouteDeps struct {
	Modules []Module
	Site    *Site
	DB      *gorm.DB
	Metrics *metrics.Recorder
	// MetricsPath mounts the Prometheus handler when Metrics is set.
	MetricsPath string
	Mode        string // gin mode; debug serves /static from disk
	CSRFSecret  string
}

func (d *RouteDeps) check() error {
	switch {
	case d == nil:
		return errors.New("route dependencies are nil")
	case d.Site == nil:
		return errors.New("site is nil")
	case strings.TrimSpace(d.CSRFSecret) == "":
		return errors.New("csrf secret is required")
	}
	for i, m := range d.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
	}
	return nil
}

// RegisterRoutes mounts the fixed routes and module routes on r. Built pages
// have no routes on r: NoRoute hands them to the page engine of the active
// snapshot, so a rebuild never touches r.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if err := deps.check(); err != nil {
		return err
	}

	if err := mountStatic(r, deps.Mode); err != nil {
		return fmt.Errorf("register static routes: %w", err)
	}

	r.GET("/health", healthHandler(deps.DB, deps.Site))

	if deps.Metrics != nil && deps.MetricsPath != "" {
		r.GET(deps.MetricsPath, deps.Metrics.GinHandler())
	}

	rt := r.Group("/_runtime")
	rt.GET("/config", runtimeConfigHandler(deps.Site))
	rt.GET("/manifest", manifestHandler(deps.Site))

	api := r.Group("/api/v1")
	pages := r.Group("/", middleware.CSRF(deps.CSRFSecret))
	for _, m := range deps.Modules {
		m.RegisterRoutes(api, pages)
	}

	r.NoRoute(noRouteHandler(deps.Site))

	return nil
}

// runtimeConfigHandler serves the public runtime config of the active snapshot.
// GET /_runtime/config
func runtimeConfigHandler(site *Site) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := site.Current()
		if snap == nil {
			c.JSON(http.StatusServiceUnavailable, pkg.Response{Code: http.StatusServiceUnavailable, Message: ErrNoManifest.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"public": snap.Manifest.Public})
	}
}

// ManifestSummary is the public view of the active manifest.
type ManifestSummary struct {
	BuildID    string             `json:"build_id"`
	BuiltAt    time.Time          `json:"built_at"`
	DurationMS int64              `json:"duration_ms"`
	Sources    []string           `json:"sources"`
	Modules    []string           `json:"modules"`
	Pages      []module.Page      `json:"pages"`
	ImportDirs []module.ImportDir `json:"import_dirs"`
	Site       build.SiteConfig   `json:"site"`
	MissingEnv []string           `json:"missing_env,omitempty"`
}

func summarize(m *build.Manifest) ManifestSummary {
	return ManifestSummary{
		BuildID:    m.BuildID,
		BuiltAt:    m.BuiltAt,
		DurationMS: m.Duration.Milliseconds(),
		Sources:    m.Sources,
		Modules:    m.ModuleNames(),
		Pages:      m.Pages,
		ImportDirs: m.ImportDirs,
		Site:       m.Site,
		MissingEnv: m.MissingEnv,
	}
}

// manifestHandler serves a summary of the active manifest.
// GET /_runtime/manifest
func manifestHandler(site *Site) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := site.Current()
		if snap == nil {
			c.JSON(http.StatusServiceUnavailable, pkg.Response{Code: http.StatusServiceUnavailable, Message: ErrNoManifest.Error()})
			return
		}
		pkg.Success(c, summarize(snap.Manifest))
	}
}

// healthCheck reports a problem with one component, or nil.
type healthCheck func(ctx context.Context) error

func databaseCheck(db *gorm.DB) healthCheck {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("no database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
}

func siteCheck(site *Site) healthCheck {
	return func(context.Context) error {
		if site == nil || site.Current() == nil {
			return ErrNoManifest
		}
		return nil
	}
}

// healthHandler answers 200 when every component is ok and 503 "degraded"
// otherwise, with the per-component status in the body.
// GET /health
func healthHandler(db *gorm.DB, site *Site) gin.HandlerFunc {
	checks := map[string]healthCheck{
		"database": databaseCheck(db),
		"site":     siteCheck(site),
	}
	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		components := make(gin.H, len(checks))
		for name, check := range checks {
			components[name] = "ok"
			if err := check(c.Request.Context()); err != nil {
				components[name] = "error"
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "components": components})
	}
}

// noRouteHandler hands GET and HEAD requests to the page engine of the active
// snapshot. Anything else gets a 404 HTML page for browser requests or a JSON
// response for API clients.
func noRouteHandler(site *Site) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, pkg.Response{Code: http.StatusNotFound, Message: "not found"})
			return
		}

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			if snap := site.Current(); snap != nil {
				c.Set(middleware.BuildIDKey, snap.Manifest.BuildID)
				if page := servePages(snap, c.Writer, c.Request); page != "" {
					c.Set(middleware.PageKey, page)
				}
				return
			}
		}

		renderError(c, http.StatusNotFound, "not found")
	}
}

// mountStatic serves /static from web/static on disk in debug mode, so asset
// edits show up without a restart, and from the embedded copy otherwise.
func mountStatic(r *gin.Engine, mode string) error {
	var (
		fsys   fs.FS
		maxAge string
		err    error
	)
	if mode == gin.DebugMode {
		fsys, err = sourceStaticDir()
	} else {
		fsys, err = fs.Sub(web.EmbeddedFS, "static")
		maxAge = "public, max-age=86400"
	}
	if err != nil {
		return err
	}
	r.GET("/static/*filepath", staticHandler(http.FS(fsys), maxAge))
	return nil
}

// sourceStaticDir locates web/static relative to this source file.
func sourceStaticDir() (fs.FS, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("locate source directory")
	}
	dir := filepath.Join(filepath.Dir(self), "..", "..", "web", "static")
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("static directory: %w", err)
	}
	return os.DirFS(dir), nil
}

// staticHandler serves files from fsys and sets Cache-Control when
// cacheControl is not empty.
func staticHandler(fsys http.FileSystem, cacheControl string) gin.HandlerFunc {
	files := http.StripPrefix("/static", http.FileServer(fsys))
	return func(c *gin.Context) {
		if cacheControl != "" {
			c.Header("Cache-Control", cacheControl)
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
