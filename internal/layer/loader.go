package layer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const delim = "."

var (
	// ErrCycle reports a fragment that (transitively) extends itself.
	ErrCycle = errors.New("extends cycle")
	// ErrNotFound reports an extended fragment that does not exist.
	ErrNotFound = errors.New("fragment not found")
)

// part is one fragment after its structural keys have been split off.
type part struct {
	source   string
	settings map[string]any
	modules  []ModuleRef
}

// Loader expands fragments and their extends into an ordered list and reduces it.
type Loader struct {
	log *slog.Logger
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Load expands every fragment depth-first (extended fragments precede the
// fragment that extends them) and reduces the result under policy.
// A file reached twice through different parents is loaded once, at its
// first position.
func (l *Loader) Load(ctx context.Context, policy MergePolicy, frags ...Fragment) (*Tree, error) {
	st := &expansion{visited: make(map[string]bool)}
	for _, f := range frags {
		if err := l.expand(ctx, f, st); err != nil {
			return nil, err
		}
	}
	return l.reduce(policy, st.parts)
}

type expansion struct {
	stack   []string
	visited map[string]bool
	parts   []part
}

func (l *Loader) expand(ctx context.Context, f Fragment, st *expansion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch frag := f.(type) {
	case File:
		return l.expandFile(ctx, frag, st)
	case Inline:
		settings, _ := deepCopy(frag.Settings).(map[string]any)
		if settings == nil {
			settings = map[string]any{}
		}
		return l.expandSettings(ctx, frag.Source(), frag.Dir, settings, st)
	case nil:
		return errors.New("fragment is nil")
	default:
		return fmt.Errorf("unsupported fragment type %T", f)
	}
}

func (l *Loader) expandFile(ctx context.Context, f File, st *expansion) error {
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("resolve fragment path %s: %w", f.Path, err)
	}

	for _, s := range st.stack {
		if s == abs {
			chain := append(append([]string(nil), st.stack...), abs)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(chain, " -> "))
		}
	}
	if st.visited[abs] {
		l.log.Debug("fragment already loaded", slog.String("fragment", abs))
		return nil
	}
	st.visited[abs] = true

	k := koanf.New(delim)
	if err := k.Load(file.Provider(abs), yaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
		return fmt.Errorf("load fragment %s: %w", f.Path, err)
	}

	st.stack = append(st.stack, abs)
	defer func() { st.stack = st.stack[:len(st.stack)-1] }()

	return l.expandSettings(ctx, abs, filepath.Dir(abs), k.Raw(), st)
}

func (l *Loader) expandSettings(ctx context.Context, source, dir string, settings map[string]any, st *expansion) error {
	extends, err := parseExtends(settings[KeyExtends], source)
	if err != nil {
		return err
	}
	modules, err := parseModules(settings[KeyModules], source)
	if err != nil {
		return err
	}
	delete(settings, KeyExtends)
	delete(settings, KeyModules)

	for _, ext := range extends {
		p := ext
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if err := l.expand(ctx, File{Path: p}, st); err != nil {
			return fmt.Errorf("%s: extends %s: %w", source, ext, err)
		}
	}

	st.parts = append(st.parts, part{source: source, settings: settings, modules: modules})
	l.log.Debug("fragment loaded",
		slog.String("fragment", source),
		slog.Int("extends", len(extends)),
		slog.Int("modules", len(modules)),
	)
	return nil
}

func (l *Loader) reduce(policy MergePolicy, parts []part) (*Tree, error) {
	k := koanf.New(delim)
	t := &Tree{k: k}
	seen := make(map[string]string)

	for _, p := range parts {
		if err := k.Load(mapProvider(p.settings), nil, koanf.WithMergeFunc(policy.merge)); err != nil {
			return nil, fmt.Errorf("merge fragment %s: %w", p.source, err)
		}
		t.sources = append(t.sources, p.source)

		for _, ref := range p.modules {
			if first, dup := seen[ref.Name]; dup {
				l.log.Debug("module already declared",
					slog.String("module", ref.Name),
					slog.String("fragment", p.source),
					slog.String("first_declared_in", first),
				)
				continue
			}
			seen[ref.Name] = ref.Source
			t.modules = append(t.modules, ref)
		}
	}

	return t, nil
}

// mapProvider feeds an already-parsed settings map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	out, _ := deepCopy(map[string]any(m)).(map[string]any)
	return out, nil
}
