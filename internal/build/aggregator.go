// Package build runs a build pass: it loads the root fragment and everything
// it extends, invokes the referenced modules in order and folds the result
// into a Manifest.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simp-lee/sitekit/internal/layer"
	"github.com/simp-lee/sitekit/internal/module"
)

// DefaultEntry is the root fragment file name inside the site root.
const DefaultEntry = "site.yaml"

// RootOwner is the owner recorded for import dirs declared by the root
// configuration itself.
const RootOwner = "root"

// ErrUnknownModule reports a module reference with no registered descriptor.
var ErrUnknownModule = errors.New("unknown module")

// Config configures an Aggregator.
type Config struct {
	// Root is the site directory. Page files resolve against it.
	Root string
	// Entry is the root fragment, relative to Root. Defaults to DefaultEntry.
	Entry    string
	Registry *module.Registry
	Policy   layer.MergePolicy
	// Pages and ImportDirs are the duplicate policies handed to the builder.
	Pages      module.DuplicatePolicy
	ImportDirs module.DuplicatePolicy
	// Lookup resolves runtime config environment variables. Defaults to os.LookupEnv.
	Lookup LookupFunc
	// EnvFiles are dotenv files backing Lookup. They are re-read on every Run.
	EnvFiles []string
	// Source overrides the filesystem page files are resolved in. Defaults to os.DirFS(Root).
	Source fs.FS
	Logger *slog.Logger
}

// Aggregator runs build passes. Each call to Run is independent.
type Aggregator struct {
	cfg    Config
	loader *layer.Loader
	log    *slog.Logger
}

// NewAggregator validates cfg and creates an Aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("site root is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("module registry is nil")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve site root %s: %w", cfg.Root, err)
	}
	cfg.Root = root
	if cfg.Entry == "" {
		cfg.Entry = DefaultEntry
	}
	if cfg.Policy == (layer.MergePolicy{}) {
		cfg.Policy = layer.DefaultPolicy()
	}
	if cfg.Lookup == nil {
		cfg.Lookup = os.LookupEnv
	}
	if cfg.Source == nil {
		cfg.Source = os.DirFS(root)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Aggregator{
		cfg:    cfg,
		loader: layer.NewLoader(log),
		log:    log,
	}, nil
}

// Root returns the absolute site root.
func (a *Aggregator) Root() string { return a.cfg.Root }

// EntryPath returns the absolute path of the root fragment.
func (a *Aggregator) EntryPath() string {
	if filepath.IsAbs(a.cfg.Entry) {
		return a.cfg.Entry
	}
	return filepath.Join(a.cfg.Root, a.cfg.Entry)
}

// Run executes one build pass.
func (a *Aggregator) Run(ctx context.Context) (*Manifest, error) {
	start := time.Now()
	buildID := uuid.NewString()
	log := a.log.With(slog.String("build_id", buildID))

	tree, err := a.loader.Load(ctx, a.cfg.Policy, layer.File{Path: a.EntryPath()})
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := tree.Unmarshal("", &site); err != nil {
		return nil, fmt.Errorf("decode site config: %w", err)
	}
	site.App.Head.Meta = dedupeMeta(site.App.Head.Meta)

	refs := tree.Modules()
	mods := make([]module.Module, len(refs))
	for i, ref := range refs {
		m, ok := a.cfg.Registry.Get(ref.Name)
		if !ok {
			return nil, fmt.Errorf("%w %q referenced by %s (registered: %s)",
				ErrUnknownModule, ref.Name, ref.Source, strings.Join(a.cfg.Registry.Names(), ", "))
		}
		mods[i] = m
	}

	b := module.NewBuilder(module.BuilderConfig{
		Source:     a.cfg.Source,
		Pages:      a.cfg.Pages,
		ImportDirs: a.cfg.ImportDirs,
		Logger:     log,
	})

	b.Seed(RootOwner, func(b *module.Builder) {
		for _, dir := range site.Imports.Dirs {
			b.RegisterImportDir(dir)
		}
	})

	infos := make([]ModuleInfo, 0, len(mods))
	for i, m := range mods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts := moduleOptions(tree, m.Meta(), refs[i])
		if err := b.Run(m, opts); err != nil {
			return nil, err
		}
		infos = append(infos, ModuleInfo{Name: refs[i].Name, Source: refs[i].Source})
	}

	result, err := b.Finish()
	if err != nil {
		return nil, err
	}

	lookup, err := EnvLookup(a.cfg.Lookup, log, a.cfg.EnvFiles...)
	if err != nil {
		return nil, err
	}
	public, missing := resolvePublic(site.RuntimeConfig, lookup)
	for _, name := range missing {
		log.Warn("runtime config environment variable is not set", slog.String("env", name))
	}

	settings := tree.Raw()
	delete(settings, "runtime_config")

	m := &Manifest{
		BuildID:    buildID,
		BuiltAt:    start.UTC(),
		Duration:   time.Since(start),
		Root:       a.cfg.Root,
		Sources:    tree.Sources(),
		Modules:    infos,
		Pages:      result.Pages(),
		ImportDirs: result.ImportDirs(),
		Site:       site,
		Public:     public,
		MissingEnv: missing,
		Settings:   settings,
	}

	log.Info("site built",
		slog.Int("fragments", len(m.Sources)),
		slog.Int("modules", len(m.Modules)),
		slog.Int("pages", len(m.Pages)),
		slog.Int("import_dirs", len(m.ImportDirs)),
		slog.Duration("duration", m.Duration),
	)
	log.Debug("site contents",
		slog.Any("modules", m.ModuleNames()),
		slog.Any("pages", m.PageNames()),
	)
	return m, nil
}

// moduleOptions returns the merged subtree at the module's config key with
// the options given on the module reference layered on top.
func moduleOptions(tree *layer.Tree, meta module.Meta, ref layer.ModuleRef) module.Options {
	key := meta.ConfigKey
	if key == "" {
		key = meta.Name
	}
	opts := module.Options(tree.Sub(key))
	if opts == nil {
		opts = module.Options{}
	}
	for k, v := range ref.Options {
		opts[k] = v
	}
	return opts
}
