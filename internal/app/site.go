package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/simp-lee/sitekit/internal/build"
	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/history"
	"github.com/simp-lee/sitekit/internal/metrics"
	"github.com/simp-lee/sitekit/internal/watch"
	"github.com/simp-lee/sitekit/web"
)

// ErrNoManifest is returned while no build has succeeded yet.
var ErrNoManifest = errors.New("site has not been built")

// Snapshot is an installed manifest with everything needed to serve it.
// It is never modified once installed.
type Snapshot struct {
	Manifest *build.Manifest
	// Engine routes GET and HEAD requests to the snapshot's pages.
	Engine *gin.Engine
	// Bodies holds the rendered HTML of each page, by page name.
	Bodies map[string]string
}

// SiteDeps holds the collaborators of a Site. History and Metrics are optional.
type SiteDeps struct {
	Aggregator *build.Aggregator
	History    domain.BuildService
	Metrics    *metrics.Recorder
	// Reserved are path prefixes pages may not use. Defaults to DefaultReservedPrefixes.
	Reserved []string
	// Source is where page files are read from. Defaults to os.DirFS of the site root.
	Source fs.FS
	// HTMLRender renders pages and error pages. Defaults to the embedded templates.
	HTMLRender render.HTMLRender
	Logger     *slog.Logger
}

// Site owns the active snapshot. Rebuilds are serialized; readers always see
// a complete snapshot.
type Site struct {
	deps     SiteDeps
	renderer *PageRenderer
	log      *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

var _ history.Rebuilder = (*Site)(nil)

// NewSite creates a Site. Nothing is built until Rebuild is called.
func NewSite(deps SiteDeps) (*Site, error) {
	if deps.Aggregator == nil {
		return nil, errors.New("aggregator is nil")
	}
	if deps.Reserved == nil {
		deps.Reserved = DefaultReservedPrefixes
	}
	if deps.Source == nil {
		deps.Source = os.DirFS(deps.Aggregator.Root())
	}
	if deps.HTMLRender == nil {
		r, err := NewTemplateRenderer(web.EmbeddedFS, false)
		if err != nil {
			return nil, fmt.Errorf("setup page templates: %w", err)
		}
		deps.HTMLRender = r
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Site{deps: deps, renderer: NewPageRenderer(), log: log}, nil
}

// Current returns the active snapshot, or nil before the first successful build.
func (s *Site) Current() *Snapshot {
	return s.current.Load()
}

// Rebuild runs a build pass and installs the result. A failed build leaves the
// previous snapshot in place. The returned record is non-nil whenever a build
// was attempted, including failed ones; err reports the build failure.
func (s *Site) Rebuild(ctx context.Context, trigger string) (*domain.BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	snap, err := s.build(ctx)
	took := time.Since(start)

	s.deps.Metrics.ObserveBuild(trigger, took, err)

	var rec *domain.BuildRecord
	if err != nil {
		rec = history.FromFailure(err, trigger, took)
		s.log.Error("build failed",
			slog.String("trigger", trigger),
			slog.Bool("serving_previous", s.current.Load() != nil),
			slog.Any("error", err),
		)
	} else {
		rec = history.FromManifest(snap.Manifest, trigger)
		s.current.Store(snap)
		m := snap.Manifest
		s.deps.Metrics.SetManifest(len(m.Pages), len(m.Modules), len(m.ImportDirs))
		s.log.Info("manifest installed",
			slog.String("trigger", trigger),
			slog.String("build_id", m.BuildID),
			slog.Int("routes", len(m.Pages)),
		)
	}

	if s.deps.History != nil {
		// Recording must survive a canceled request.
		if herr := s.deps.History.Record(context.WithoutCancel(ctx), rec); herr != nil {
			s.log.Warn("failed to record build", slog.String("build_id", rec.BuildID), slog.Any("error", herr))
		}
	}
	return rec, err
}

func (s *Site) build(ctx context.Context) (*Snapshot, error) {
	m, err := s.deps.Aggregator.Run(ctx)
	if err != nil {
		return nil, err
	}
	bodies, err := s.renderer.RenderAll(s.deps.Source, m.Pages)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Manifest: m, Bodies: bodies}
	snap.Engine, err = newPageEngine(snap, s.deps.Reserved, s.deps.HTMLRender, s.deps.Metrics)
	if err != nil {
		return nil, fmt.Errorf("install routes: %w", err)
	}
	return snap, nil
}

// Watch rebuilds the site whenever w reports changes, until ctx is canceled.
func (s *Site) Watch(ctx context.Context, w *watch.Watcher) error {
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		s.log.Info("site changed, rebuilding", slog.Int("files", len(changed)), slog.String("first", changed[0]))
		_, _ = s.Rebuild(ctx, domain.TriggerWatch)
	})
}
