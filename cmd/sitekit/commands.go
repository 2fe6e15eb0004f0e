package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/simp-lee/sitekit/internal/app"
	"github.com/simp-lee/sitekit/internal/config"
	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/history"
)

// ServeCmd runs the HTTP server.
type ServeCmd struct{}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return a.Run()
}

// BuildCmd runs a single build pass, the same one the server runs at startup.
type BuildCmd struct {
	Format string `short:"f" help:"Output format." enum:"yaml,json" default:"yaml"`
	Record bool   `help:"Store the outcome in the build history."`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	env, err := openEnv(root.Config, b.Record)
	if err != nil {
		return err
	}
	defer env.close()

	snap, err := env.build()
	if err != nil {
		return err
	}

	switch b.Format {
	case "json":
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Manifest)
	default:
		enc := yaml.NewEncoder(g.Out)
		enc.SetIndent(2)
		if err := enc.Encode(snap.Manifest); err != nil {
			return err
		}
		return enc.Close()
	}
}

// RoutesCmd prints the route table of a fresh build.
type RoutesCmd struct{}

func (r *RoutesCmd) Run(g *Global, root *CLI) error {
	env, err := openEnv(root.Config, false)
	if err != nil {
		return err
	}
	defer env.close()

	snap, err := env.build()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tPAGE\tMODULE\tFILE")
	for _, p := range snap.Manifest.Pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Path, p.Name, p.Module, p.File)
	}
	return tw.Flush()
}

// HistoryCmd lists the newest recorded builds.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show." default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	if h.Limit < 1 {
		return errors.New("limit must be positive")
	}
	env, err := openEnv(root.Config, true)
	if err != nil {
		return err
	}
	defer env.close()

	res, err := env.history.LatestBuilds(context.Background(), domain.PageRequest{Page: 1, PageSize: h.Limit, Sort: "id:desc"})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBUILD\tTRIGGER\tSTATUS\tPAGES\tDURATION\tCREATED")
	for _, r := range res.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			r.ID, r.BuildID, r.Trigger, r.Status, r.PageCount, r.DurationMS, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// cliEnv is the part of the application a one-shot command needs.
type cliEnv struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	history domain.BuildService
	site    *app.Site
}

// openEnv loads the config and wires a site. With withHistory set and
// history enabled, the database is opened and builds are recorded.
func openEnv(path string, withHistory bool) (*cliEnv, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so command output can be piped.
	log, err := logger.New(append(config.BuildLoggerOpts(&cfg.Log), logger.WithConsoleWriter(os.Stderr))...)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	log.SetDefault()
	// Builds still install a page engine; keep gin's route dump off stdout.
	gin.SetMode(gin.ReleaseMode)
	env := &cliEnv{cfg: cfg, log: log}

	if withHistory {
		if !cfg.History.Enabled {
			env.close()
			return nil, errors.New("build history is disabled in the configuration")
		}
		db, err := config.SetupDatabase(&cfg.Database, log.Logger)
		if err != nil {
			env.close()
			return nil, fmt.Errorf("setup database: %w", err)
		}
		env.db = db
		if err := app.MigrateHistory(db); err != nil {
			env.close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		env.history = history.NewBuildService(history.NewBuildRepository(db), cfg.History.Keep, log.Logger)
	}

	agg, err := app.NewAggregator(cfg, log.Logger)
	if err != nil {
		env.close()
		return nil, fmt.Errorf("setup aggregator: %w", err)
	}
	reserved := append([]string(nil), app.DefaultReservedPrefixes...)
	if cfg.Metrics.Enabled {
		reserved = append(reserved, cfg.Metrics.Path)
	}
	env.site, err = app.NewSite(app.SiteDeps{
		Aggregator: agg,
		History:    env.history,
		Reserved:   reserved,
		Logger:     log.Logger,
	})
	if err != nil {
		env.close()
		return nil, fmt.Errorf("setup site: %w", err)
	}
	return env, nil
}

func (e *cliEnv) build() (*app.Snapshot, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := e.site.Rebuild(ctx, domain.TriggerCLI); err != nil {
		return nil, fmt.Errorf("build site: %w", err)
	}
	return e.site.Current(), nil
}

func (e *cliEnv) close() {
	if e.db != nil {
		if sqlDB, err := e.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("database close error", slog.Any("error", err))
			}
		}
	}
	if e.log != nil {
		_ = e.log.Close()
	}
}
