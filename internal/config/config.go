package config

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/simp-lee/sitekit/internal/layer"
	"github.com/simp-lee/sitekit/internal/module"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Site     SiteConfig     `koanf:"site"`
	History  HistoryConfig  `koanf:"history"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string     `koanf:"host"`
	Port       int        `koanf:"port"`
	Mode       string     `koanf:"mode"`
	CSRFSecret string     `koanf:"csrf_secret"`
	Timeout    string     `koanf:"timeout"`
	CORS       CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// SiteConfig locates the site tree and controls how it is built.
type SiteConfig struct {
	Root  string `koanf:"root"`
	Entry string `koanf:"entry"`
	// EnvFiles are dotenv files consulted for runtime config variables after
	// the process environment.
	EnvFiles      []string         `koanf:"env_files"`
	Watch         bool             `koanf:"watch"`
	WatchDebounce string           `koanf:"watch_debounce"`
	Merge         MergeConfig      `koanf:"merge"`
	Duplicates    DuplicatesConfig `koanf:"duplicates"`
}

// MergeConfig selects the fragment merge policy.
type MergeConfig struct {
	Scalars string `koanf:"scalars"`
	Lists   string `koanf:"lists"`
}

// DuplicatesConfig selects how repeated pages and import dirs are handled.
type DuplicatesConfig struct {
	Pages      string `koanf:"pages"`
	ImportDirs string `koanf:"import_dirs"`
}

// HistoryConfig controls the persisted build history.
type HistoryConfig struct {
	Enabled bool `koanf:"enabled"`
	// Keep is the number of records retained; 0 keeps everything.
	Keep int `koanf:"keep"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

const (
	defaultSiteRoot      = "site"
	defaultSiteEntry     = "site.yaml"
	defaultWatchDebounce = 300 * time.Millisecond
	defaultMetricsPath   = "/metrics"
)

// MergePolicy returns the configured fragment merge policy. It must be
// called on a validated config.
func (s SiteConfig) MergePolicy() layer.MergePolicy {
	p, err := layer.ParsePolicy(s.Merge.Scalars, s.Merge.Lists)
	if err != nil {
		return layer.DefaultPolicy()
	}
	return p
}

// PagePolicy returns the duplicate policy for page names.
func (s SiteConfig) PagePolicy() module.DuplicatePolicy {
	p, err := module.ParseDuplicatePolicy(s.Duplicates.Pages, module.DuplicateReject)
	if err != nil {
		return module.DuplicateReject
	}
	return p
}

// ImportDirPolicy returns the duplicate policy for import directories.
func (s SiteConfig) ImportDirPolicy() module.DuplicatePolicy {
	p, err := module.ParseDuplicatePolicy(s.Duplicates.ImportDirs, module.DuplicateIgnore)
	if err != nil {
		return module.DuplicateIgnore
	}
	return p
}

// Debounce returns the watch debounce interval.
func (s SiteConfig) Debounce() time.Duration {
	if s.WatchDebounce == "" {
		return defaultWatchDebounce
	}
	d, err := time.ParseDuration(s.WatchDebounce)
	if err != nil || d <= 0 {
		return defaultWatchDebounce
	}
	return d
}

// EnvPrefix marks process variables that override file settings. A double
// underscore separates levels and single underscores stay in the key, so
// APP__SITE__DUPLICATES__IMPORT_DIRS=reject sets site.duplicates.import_dirs.
const EnvPrefix = "APP__"

// Load reads the YAML file at configPath, applies EnvPrefix overrides and
// validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env overrides: %w", err)
	}

	cfg := new(Config)
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps APP__SERVER__PORT to server.port.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

var (
	serverModes     = []string{gin.DebugMode, gin.ReleaseMode, gin.TestMode}
	databaseDrivers = []string{"sqlite", "postgres"}
	sslModes        = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	releaseSSLModes = []string{"require", "verify-ca", "verify-full"}
	logLevels       = []string{"debug", "info", "warn", "error"}
	logFormats      = []string{"text", "json"}
)

// Validate normalizes c in place and reports the first invalid setting.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateSite,
		c.validateHistory,
		c.validateMetrics,
		c.validateLog,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	srv := &c.Server
	if err := oneOf("server.mode", &srv.Mode, false, serverModes...); err != nil {
		return err
	}
	if err := portInRange("server.port", srv.Port); err != nil {
		return err
	}
	if err := required("server.host", &srv.Host, ""); err != nil {
		return err
	}
	if err := positiveDuration("server.timeout", &srv.Timeout); err != nil {
		return err
	}
	return positiveDuration("server.cors.max_age", &srv.CORS.MaxAge)
}

func (c *Config) validateDatabase() error {
	db := &c.Database
	if err := oneOf("database.driver", &db.Driver, false, databaseDrivers...); err != nil {
		return err
	}
	if err := positiveDuration("database.pool.conn_max_lifetime", &db.Pool.ConnMaxLifetime); err != nil {
		return err
	}
	if db.Driver == "sqlite" {
		return required("database.sqlite.path", &db.SQLite.Path, "when driver is sqlite")
	}

	pg := &db.Postgres
	const when = "when driver is postgres"
	if err := required("database.postgres.host", &pg.Host, when); err != nil {
		return err
	}
	if err := portInRange("database.postgres.port", pg.Port); err != nil {
		return err
	}
	if err := required("database.postgres.user", &pg.User, when); err != nil {
		return err
	}
	if err := required("database.postgres.dbname", &pg.DBName, when); err != nil {
		return err
	}
	if err := oneOf("database.postgres.sslmode", &pg.SSLMode, false, sslModes...); err != nil {
		return err
	}
	if c.Server.Mode == gin.ReleaseMode && !slices.Contains(releaseSSLModes, pg.SSLMode) {
		return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %s",
			pg.SSLMode, gin.ReleaseMode, quoteAll(releaseSSLModes))
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.Keep < 0 {
		return fmt.Errorf("invalid history.keep %d: must not be negative", c.History.Keep)
	}
	return nil
}

// validateMetrics cleans metrics.path down to a literal, non-root route.
func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	raw := c.Metrics.Path
	p := cmp.Or(strings.TrimSpace(raw), defaultMetricsPath)
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("invalid metrics.path %q: must start with '/'", raw)
	}
	p = strings.TrimRight(p, "/")
	switch {
	case p == "":
		return fmt.Errorf("invalid metrics.path %q: must not be the site root", raw)
	case strings.ContainsAny(p, ":*"):
		return fmt.Errorf("invalid metrics.path %q: must be a literal path", raw)
	}
	c.Metrics.Path = p
	return nil
}

func (c *Config) validateLog() error {
	if err := oneOf("log.level", &c.Log.Level, true, logLevels...); err != nil {
		return err
	}
	return oneOf("log.format", &c.Log.Format, true, logFormats...)
}

// oneOf trims *v, optionally lowercases it, and checks it against allowed.
func oneOf(field string, v *string, fold bool, allowed ...string) error {
	s := strings.TrimSpace(*v)
	if fold {
		s = strings.ToLower(s)
	}
	if !slices.Contains(allowed, s) {
		return fmt.Errorf("invalid %s %q: must be one of %s", field, *v, quoteAll(allowed))
	}
	*v = s
	return nil
}

func required(field string, v *string, when string) error {
	*v = strings.TrimSpace(*v)
	if *v != "" {
		return nil
	}
	if when != "" {
		return fmt.Errorf("%s is required %s", field, when)
	}
	return fmt.Errorf("%s is required", field)
}

func portInRange(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 1 and 65535", field, port)
	}
	return nil
}

// positiveDuration accepts an unset (blank) duration and otherwise requires a
// parseable value above zero.
func positiveDuration(field string, v *string) error {
	raw := *v
	*v = strings.TrimSpace(raw)
	if *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", field, raw)
	}
	return nil
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}

func (c *Config) validateSite() error {
	s := &c.Site

	s.Root = cmp.Or(strings.TrimSpace(s.Root), defaultSiteRoot)
	s.Entry = cmp.Or(strings.TrimSpace(s.Entry), defaultSiteEntry)

	files := make([]string, 0, len(s.EnvFiles))
	for idx, f := range s.EnvFiles {
		f = strings.TrimSpace(f)
		if f == "" {
			return fmt.Errorf("site.env_files[%d] cannot be empty", idx)
		}
		files = append(files, f)
	}
	s.EnvFiles = files

	if err := positiveDuration("site.watch_debounce", &s.WatchDebounce); err != nil {
		return err
	}

	policy, err := layer.ParsePolicy(strings.TrimSpace(s.Merge.Scalars), strings.TrimSpace(s.Merge.Lists))
	if err != nil {
		return fmt.Errorf("invalid site.merge: %w", err)
	}
	s.Merge.Scalars = string(policy.Scalars)
	s.Merge.Lists = string(policy.Lists)

	pages, err := module.ParseDuplicatePolicy(strings.TrimSpace(s.Duplicates.Pages), module.DuplicateReject)
	if err != nil {
		return fmt.Errorf("invalid site.duplicates.pages: %w", err)
	}
	s.Duplicates.Pages = string(pages)

	dirs, err := module.ParseDuplicatePolicy(strings.TrimSpace(s.Duplicates.ImportDirs), module.DuplicateIgnore)
	if err != nil {
		return fmt.Errorf("invalid site.duplicates.import_dirs: %w", err)
	}
	s.Duplicates.ImportDirs = string(dirs)

	return nil
}
