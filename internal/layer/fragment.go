// Package layer loads partial site configurations and reduces them, in
// declared order, into one merged tree.
//
// A fragment is either a YAML file on disk (File) or an in-memory settings
// map (Inline). Both may declare two structural keys that are never merged as
// settings: "extends", a list of further fragments loaded before the
// declaring fragment, and "modules", the ordered list of module references.
package layer

import (
	"fmt"
	"strings"
)

// Structural keys.
const (
	KeyExtends = "extends"
	KeyModules = "modules"
)

// Fragment is one partial configuration. The set of variants is closed.
type Fragment interface {
	Source() string
	fragment()
}

// File is a YAML fragment on disk. Relative extends are resolved against the
// file's directory.
type File struct {
	Path string
}

func (f File) Source() string { return f.Path }
func (File) fragment()        {}

// Inline is an in-memory fragment. Relative extends are resolved against Dir.
type Inline struct {
	Name     string
	Dir      string
	Settings map[string]any
}

func (i Inline) Source() string {
	if i.Name == "" {
		return "inline"
	}
	return i.Name
}
func (Inline) fragment() {}

// ModuleRef references a registered module by name.
type ModuleRef struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	// Source is the fragment that declared the reference.
	Source string `json:"source" yaml:"source"`
}

// parseModules accepts either a plain name or a {name, options} map per entry.
func parseModules(raw any, source string) ([]ModuleRef, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %q must be a list, got %T", source, KeyModules, raw)
	}

	refs := make([]ModuleRef, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			name := strings.TrimSpace(v)
			if name == "" {
				return nil, fmt.Errorf("%s: %s[%d] is empty", source, KeyModules, i)
			}
			refs = append(refs, ModuleRef{Name: name, Source: source})
		case map[string]any:
			name, _ := v["name"].(string)
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("%s: %s[%d] has no name", source, KeyModules, i)
			}
			ref := ModuleRef{Name: name, Source: source}
			if opts, ok := v["options"].(map[string]any); ok {
				ref.Options = opts
			}
			refs = append(refs, ref)
		default:
			return nil, fmt.Errorf("%s: %s[%d] has unsupported type %T", source, KeyModules, i, item)
		}
	}
	return refs, nil
}

func parseExtends(raw any, source string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %q must be a list, got %T", source, KeyExtends, raw)
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%s: %s[%d] must be a non-empty path", source, KeyExtends, i)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}
