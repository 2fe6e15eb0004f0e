package module

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Extension point names.
const (
	HookPagesExtend = "pages:extend"
	HookImportsDirs = "imports:dirs"
)

// BuilderConfig configures a single build pass.
type BuilderConfig struct {
	// Source resolves page files. When nil, file references are not checked.
	Source fs.FS
	// Pages is the policy for duplicate page names. Defaults to DuplicateReject.
	Pages DuplicatePolicy
	// ImportDirs is the policy for duplicate import directories. Defaults to DuplicateIgnore.
	ImportDirs DuplicatePolicy
	Logger     *slog.Logger
}

type hook[T any] struct {
	owner string
	fn    func(T) error
}

// Builder accumulates the registrations of every module during one build
// pass. It is handed to each module's setup in turn and consumed by Finish.
// A Builder is not safe for concurrent use.
type Builder struct {
	cfg      BuilderConfig
	validate *validator.Validate
	log      *slog.Logger

	current   string
	pageHooks []hook[*PageList]
	dirHooks  []hook[*DirList]
	finished  bool
}

// NewBuilder creates an empty Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Pages == "" {
		cfg.Pages = DuplicateReject
	}
	if cfg.ImportDirs == "" {
		cfg.ImportDirs = DuplicateIgnore
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		cfg:      cfg,
		validate: validator.New(),
		log:      log,
	}
}

// Run invokes the module's setup with this builder. Registrations made during
// the call are attributed to the module.
func (b *Builder) Run(m Module, opts Options) error {
	if b.finished {
		return ErrBuilderFinished
	}
	if m == nil {
		return errors.New("module is nil")
	}

	meta := m.Meta()
	if err := b.validate.Struct(meta); err != nil {
		return fmt.Errorf("invalid module meta: %w", err)
	}
	if opts == nil {
		opts = Options{}
	}

	prev := b.current
	b.current = meta.Name
	defer func() { b.current = prev }()

	pagesBefore, dirsBefore := len(b.pageHooks), len(b.dirHooks)
	if err := m.Setup(opts, b); err != nil {
		var se *SetupError
		if errors.As(err, &se) {
			return err
		}
		return &SetupError{Module: meta.Name, Err: err}
	}

	b.log.Debug("module setup complete",
		slog.String("module", meta.Name),
		slog.Int("page_hooks", len(b.pageHooks)-pagesBefore),
		slog.Int("dir_hooks", len(b.dirHooks)-dirsBefore),
	)
	return nil
}

// Seed registers entries on behalf of a named owner that is not a module,
// such as the root configuration's own import directories.
func (b *Builder) Seed(owner string, fn func(b *Builder)) {
	prev := b.current
	b.current = owner
	defer func() { b.current = prev }()
	fn(b)
}

// ExtendPages registers a "pages:extend" hook.
func (b *Builder) ExtendPages(fn func(pages *PageList) error) {
	if fn == nil || b.lateCall(HookPagesExtend) {
		return
	}
	b.pageHooks = append(b.pageHooks, hook[*PageList]{owner: b.current, fn: fn})
}

// ExtendImportDirs registers an "imports:dirs" hook.
func (b *Builder) ExtendImportDirs(fn func(dirs *DirList) error) {
	if fn == nil || b.lateCall(HookImportsDirs) {
		return
	}
	b.dirHooks = append(b.dirHooks, hook[*DirList]{owner: b.current, fn: fn})
}

// RegisterPages appends pages to the shared page list.
func (b *Builder) RegisterPages(pages ...Page) {
	entries := append([]Page(nil), pages...)
	b.ExtendPages(func(l *PageList) error {
		l.Push(entries...)
		return nil
	})
}

// RegisterImportDir appends a directory to the shared import-directory list.
func (b *Builder) RegisterImportDir(dir string) {
	b.ExtendImportDirs(func(l *DirList) error {
		l.Push(dir)
		return nil
	})
}

func (b *Builder) lateCall(hookName string) bool {
	if !b.finished {
		return false
	}
	b.log.Warn("registration after build finished is ignored",
		slog.String("hook", hookName),
		slog.String("module", b.current),
	)
	return true
}

// Finish dispatches the registered hooks in order, validates and resolves
// every page, applies the duplicate policies and returns the folded result.
// The builder cannot be used afterwards.
func (b *Builder) Finish() (*Result, error) {
	if b.finished {
		return nil, ErrBuilderFinished
	}
	b.finished = true

	pages := &PageList{}
	for _, h := range b.pageHooks {
		pages.owner = h.owner
		if err := h.fn(pages); err != nil {
			return nil, &SetupError{Module: h.owner, Subject: HookPagesExtend, Err: err}
		}
	}

	dirs := &DirList{}
	for _, h := range b.dirHooks {
		dirs.owner = h.owner
		if err := h.fn(dirs); err != nil {
			return nil, &SetupError{Module: h.owner, Subject: HookImportsDirs, Err: err}
		}
	}

	for i := range pages.entries {
		p := &pages.entries[i]
		if err := b.validate.Struct(p); err != nil {
			return nil, &SetupError{Module: p.Module, Subject: p.Name, Err: fmt.Errorf("%w: %v", ErrInvalidPage, err)}
		}
		file, err := b.resolve(p.File)
		if err != nil {
			return nil, &SetupError{Module: p.Module, Subject: p.File, Err: err}
		}
		p.File = file
	}

	resolvedPages, err := dedupePages(pages.entries, b.cfg.Pages, b.log)
	if err != nil {
		return nil, err
	}
	resolvedDirs, err := dedupeDirs(dirs.entries, b.cfg.ImportDirs, b.log)
	if err != nil {
		return nil, err
	}

	return &Result{pages: resolvedPages, importDirs: resolvedDirs}, nil
}

// resolve normalizes a file reference and checks it exists in the source FS.
func (b *Builder) resolve(file string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(strings.TrimSpace(file), "/"))
	if !fs.ValidPath(clean) || clean == "." {
		return "", fmt.Errorf("%w: invalid path %q", ErrUnresolvedFile, file)
	}
	if b.cfg.Source == nil {
		return clean, nil
	}
	info, err := fs.Stat(b.cfg.Source, clean)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvedFile, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %q is a directory", ErrUnresolvedFile, clean)
	}
	return clean, nil
}

func dedupePages(entries []Page, policy DuplicatePolicy, log *slog.Logger) ([]Page, error) {
	out := make([]Page, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, p := range entries {
		i, seen := index[p.Name]
		if !seen {
			index[p.Name] = len(out)
			out = append(out, p)
			continue
		}
		first := out[i]
		switch policy {
		case DuplicateIgnore:
			log.Warn("duplicate page ignored",
				slog.String("page", p.Name),
				slog.String("module", p.Module),
				slog.String("kept_from", first.Module),
			)
		case DuplicateOverride:
			log.Warn("duplicate page overrides earlier registration",
				slog.String("page", p.Name),
				slog.String("module", p.Module),
				slog.String("replaced_from", first.Module),
			)
			out[i] = p
		default:
			return nil, &SetupError{
				Module:  p.Module,
				Subject: p.Name,
				Err:     fmt.Errorf("%w: already registered by module %q", ErrDuplicatePage, first.Module),
			}
		}
	}
	return out, nil
}

func dedupeDirs(entries []ImportDir, policy DuplicatePolicy, log *slog.Logger) ([]ImportDir, error) {
	out := make([]ImportDir, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, d := range entries {
		key := path.Clean(d.Dir)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, d)
			continue
		}
		switch policy {
		case DuplicateIgnore:
			log.Debug("duplicate import dir ignored", slog.String("dir", d.Dir), slog.String("module", d.Module))
		case DuplicateOverride:
			out[i] = d
		default:
			return nil, &SetupError{
				Module:  d.Module,
				Subject: d.Dir,
				Err:     fmt.Errorf("%w: already registered by module %q", ErrDuplicateImportDir, out[i].Module),
			}
		}
	}
	return out, nil
}

// Result is the immutable outcome of a build pass.
type Result struct {
	pages      []Page
	importDirs []ImportDir
}

// Pages returns a copy of the registered pages in registration order.
func (r *Result) Pages() []Page {
	return append([]Page(nil), r.pages...)
}

// ImportDirs returns a copy of the registered import directories in order.
func (r *Result) ImportDirs() []ImportDir {
	return append([]ImportDir(nil), r.importDirs...)
}
