// Package features holds the built-in module descriptors of the site: one per
// front-end feature, plus descriptors for the UI framework and the store
// library that only contribute import directories.
package features

import (
	"fmt"
	"path"

	"github.com/simp-lee/sitekit/internal/module"
)

// Option keys understood by every feature module.
const (
	// OptDir overrides the feature's directory inside the site root.
	OptDir = "dir"
	// OptDisabled lists page names the feature should not register.
	OptDisabled = "disabled_pages"
)

// feature builds a descriptor that registers pages under <dir>/pages and the
// <dir>/stores import directory. dir defaults to the feature name.
func feature(name string, pages ...module.Page) module.Module {
	return module.Define(module.Meta{Name: name, ConfigKey: name}, func(opts module.Options, b *module.Builder) error {
		dir := opts.String(OptDir)
		if dir == "" {
			dir = name
		}
		disabled, err := stringSet(opts[OptDisabled])
		if err != nil {
			return fmt.Errorf("%s: %w", OptDisabled, err)
		}

		entries := make([]module.Page, 0, len(pages))
		for _, p := range pages {
			if disabled[p.Name] {
				continue
			}
			p.File = path.Join(dir, "pages", p.File)
			entries = append(entries, p)
		}

		b.ExtendPages(func(l *module.PageList) error {
			l.Push(entries...)
			return nil
		})
		b.ExtendImportDirs(func(l *module.DirList) error {
			l.Push(path.Join(dir, "stores"))
			return nil
		})
		return nil
	})
}

func stringSet(raw any) (map[string]bool, error) {
	set := make(map[string]bool)
	if raw == nil {
		return set, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list, got %T", raw)
	}
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("entry %d must be a string, got %T", i, v)
		}
		set[s] = true
	}
	return set, nil
}
