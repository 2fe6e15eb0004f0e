package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/sitekit/internal/build"
	"github.com/simp-lee/sitekit/internal/config"
	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/features"
	"github.com/simp-lee/sitekit/internal/history"
	"github.com/simp-lee/sitekit/internal/metrics"
	"github.com/simp-lee/sitekit/internal/middleware"
	"github.com/simp-lee/sitekit/internal/module"
	"github.com/simp-lee/sitekit/internal/watch"
	"github.com/simp-lee/sitekit/web"
)

const shutdownTimeout = 5 * time.Second

// App is the assembled server: HTTP engine, build history database, site and
// the optional source watcher.
type App struct {
	engine  *gin.Engine
	db      *gorm.DB
	logger  *logger.Logger
	cfg     *config.Config
	site    *Site
	watcher *watch.Watcher
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// newHTTPServer and notifyContext are replaced in tests.
var (
	newHTTPServer = func(addr string, handler http.Handler, writeTimeout time.Duration) httpServer {
		if writeTimeout <= 0 {
			writeTimeout = time.Minute
		}
		return &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
		}
	}
	notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(parent, signals...)
	}
)

// NewRegistry returns a registry holding the built-in feature modules.
func NewRegistry() (*module.Registry, error) {
	reg := module.NewRegistry()
	if err := features.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewAggregator wires an aggregator from the site section of cfg.
func NewAggregator(cfg *config.Config, log *slog.Logger) (*build.Aggregator, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	reg, err := NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("register modules: %w", err)
	}
	return build.NewAggregator(build.Config{
		Root:       cfg.Site.Root,
		Entry:      cfg.Site.Entry,
		Registry:   reg,
		Policy:     cfg.Site.MergePolicy(),
		Pages:      cfg.Site.PagePolicy(),
		ImportDirs: cfg.Site.ImportDirPolicy(),
		EnvFiles:   cfg.Site.EnvFiles,
		Logger:     log,
	})
}

// MigrateHistory creates or updates the build history tables.
func MigrateHistory(db *gorm.DB) error {
	return db.AutoMigrate(&domain.BuildRecord{}, &domain.BuildPage{})
}

// undoStack runs cleanups in reverse order when New fails part way.
type undoStack []func()

func (u *undoStack) push(f func()) { *u = append(*u, f) }

func (u undoStack) run() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

// New wires logging, the database, templates, the site and its first build,
// the watcher, middleware and routes. A failed initial build is fatal only in
// release mode; elsewhere the app starts empty and waits for a fix.
func New(cfg *config.Config) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	mode := cfg.Server.Mode
	if !slices.Contains([]string{gin.DebugMode, gin.ReleaseMode, gin.TestMode}, mode) {
		return nil, fmt.Errorf("invalid server.mode %q", mode)
	}

	var undo undoStack
	defer func() {
		if err != nil {
			undo.run()
		}
	}()

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	undo.push(func() { closeLogger(log) })
	if mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}

	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	undo.push(func() { closeDatabase(db, log.Logger) })
	if cfg.History.Enabled {
		if err := MigrateHistory(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto migration completed")
	}

	gin.SetMode(mode)
	webFS, err := openWebFS(mode)
	if err != nil {
		return nil, err
	}
	renderer, err := NewTemplateRenderer(webFS, mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}

	site, modules, rec, err := assembleSite(cfg, db, renderer, log.Logger)
	if err != nil {
		return nil, err
	}
	if _, err := site.Rebuild(context.Background(), domain.TriggerStartup); err != nil {
		if mode == gin.ReleaseMode {
			return nil, fmt.Errorf("initial build: %w", err)
		}
		log.Warn("initial build failed, serving nothing until the next successful build", slog.Any("error", err))
	}

	var watcher *watch.Watcher
	if cfg.Site.Watch {
		if watcher, err = watch.New(site.deps.Aggregator.Root(), cfg.Site.Debounce(), log.Logger); err != nil {
			return nil, fmt.Errorf("setup watcher: %w", err)
		}
		undo.push(func() { _ = watcher.Close() })
	}

	secret, err := csrfSecret(cfg.Server, log.Logger)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, log.Logger)
	engine.HTMLRender = renderer
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:     modules,
		Site:        site,
		DB:          db,
		Metrics:     rec,
		MetricsPath: cfg.Metrics.Path,
		Mode:        mode,
		CSRFSecret:  secret,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &App{engine: engine, db: db, logger: log, cfg: cfg, site: site, watcher: watcher}, nil
}

// assembleSite builds the Site with its optional history service and metrics
// recorder, plus the modules that expose history over HTTP.
func assembleSite(cfg *config.Config, db *gorm.DB, html *TemplateRenderer, log *slog.Logger) (*Site, []Module, *metrics.Recorder, error) {
	agg, err := NewAggregator(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup aggregator: %w", err)
	}

	deps := SiteDeps{
		Aggregator: agg,
		Reserved:   slices.Clone(DefaultReservedPrefixes),
		HTMLRender: html,
		Logger:     log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewRecorder(nil)
		deps.Reserved = append(deps.Reserved, cfg.Metrics.Path)
	}
	if cfg.History.Enabled {
		deps.History = history.NewBuildService(history.NewBuildRepository(db), cfg.History.Keep, log)
	}

	site, err := NewSite(deps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup site: %w", err)
	}
	var modules []Module
	if deps.History != nil {
		modules = append(modules, history.NewModule(
			history.NewBuildHandler(deps.History, site),
			history.NewBuildPageHandler(deps.History, site),
		))
	}
	return site, modules, deps.Metrics, nil
}

// newEngine returns a gin engine with the shared middleware chain. Health
// checks and metric scrapes stay out of the access log.
func newEngine(cfg *config.Config, log *slog.Logger) *gin.Engine {
	quiet := []string{"/health"}
	if cfg.Metrics.Enabled {
		quiet = append(quiet, cfg.Metrics.Path)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(false),
		middleware.AccessLog(log, quiet...),
		middleware.Recovery(log, func(c *gin.Context) {
			renderError(c, http.StatusInternalServerError, "internal server error")
		}),
		middleware.CORS(corsOptions(cfg.Server)),
	)
	return engine
}

var placeholderSecrets = []string{"", "change-me-to-a-random-secret", "change-me-in-env"}

func isPlaceholderCSRFSecret(secret string) bool {
	return slices.Contains(placeholderSecrets, strings.ToLower(strings.TrimSpace(secret)))
}

// csrfSecret returns the configured secret. Outside release mode a missing or
// placeholder secret is replaced by a random one that lasts until restart.
func csrfSecret(srv config.ServerConfig, log *slog.Logger) (string, error) {
	if !isPlaceholderCSRFSecret(srv.CSRFSecret) {
		return srv.CSRFSecret, nil
	}
	if srv.Mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	return hex.EncodeToString(b), nil
}

// corsOptions maps server.cors. With no allow_origins, debug mode allows any
// origin and release mode none.
func corsOptions(srv config.ServerConfig) middleware.CORSOptions {
	c := srv.CORS
	opts := middleware.CORSOptions{
		Origins:     c.AllowOrigins,
		Methods:     c.AllowMethods,
		Headers:     c.AllowHeaders,
		Credentials: c.AllowCredentials,
	}
	if len(opts.Origins) == 0 && srv.Mode != gin.ReleaseMode {
		opts.Origins = []string{"*"}
	}
	// validated by config.Load
	if d, err := time.ParseDuration(c.MaxAge); err == nil {
		opts.MaxAge = d
	}
	return opts
}

// openWebFS returns the embedded web tree, or in debug mode the web directory
// next to the sources or the executable so template edits apply live.
func openWebFS(mode string) (fs.FS, error) {
	if mode != gin.DebugMode {
		return web.EmbeddedFS, nil
	}
	var candidates []string
	if _, self, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), "..", "..", "web"))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	for _, dir := range candidates {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return os.DirFS(filepath.Clean(dir)), nil
		}
	}
	return nil, errors.New("resolve debug template fs: web directory not found")
}

// Engine returns the configured gin engine.
func (a *App) Engine() *gin.Engine { return a.engine }

// Site returns the site served by the app.
func (a *App) Site() *Site { return a.site }

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}

// Run serves HTTP and, when configured, watches the site sources until
// SIGINT or SIGTERM. It then shuts the server down gracefully, stops the
// watcher and releases the database and logger.
func (a *App) Run() error {
	switch {
	case a == nil:
		return errors.New("app is nil")
	case a.cfg == nil:
		return errors.New("app config is nil")
	case a.engine == nil:
		return errors.New("app engine is nil")
	}
	log := a.log()

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, serverTimeout(a.cfg.Server.Timeout))

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var watching sync.WaitGroup
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.watcher != nil && a.site != nil {
		watching.Go(func() {
			if err := a.site.Watch(watchCtx, a.watcher); err != nil {
				log.Error("site watcher stopped", slog.Any("error", err))
			}
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
		cancel()
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	stopWatch()
	watching.Wait()

	if a.db != nil {
		closeDatabase(a.db, log)
	}
	log.Info("server stopped")
	if a.logger != nil {
		closeLogger(a.logger)
	}
	return runErr
}

func closeDatabase(db *gorm.DB, log *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("database close error", slog.Any("error", err))
		return
	}
	log.Info("database connection closed")
}

func closeLogger(l *logger.Logger) {
	if err := l.Close(); err != nil {
		slog.Error("logger close error", slog.Any("error", err))
	}
}

// serverTimeout parses server.timeout; an empty or invalid value means the
// server default.
func serverTimeout(v string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
