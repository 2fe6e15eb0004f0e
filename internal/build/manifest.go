package build

import (
	"time"

	"github.com/simp-lee/sitekit/internal/module"
)

// Manifest is the output of one build pass. It is never modified after Run
// returns it.
type Manifest struct {
	BuildID  string        `json:"build_id" yaml:"build_id"`
	BuiltAt  time.Time     `json:"built_at" yaml:"built_at"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Root     string        `json:"root" yaml:"root"`

	// Sources lists the fragments in merge order.
	Sources    []string           `json:"sources" yaml:"sources"`
	Modules    []ModuleInfo       `json:"modules" yaml:"modules"`
	Pages      []module.Page      `json:"pages" yaml:"pages"`
	ImportDirs []module.ImportDir `json:"import_dirs" yaml:"import_dirs"`

	Site SiteConfig `json:"site" yaml:"site"`
	// Public is the public runtime config. Keys whose environment variable is
	// unset hold nil.
	Public map[string]any `json:"public" yaml:"public"`
	// MissingEnv lists the unset environment variables, sorted.
	MissingEnv []string `json:"missing_env,omitempty" yaml:"missing_env,omitempty"`
	// Settings is the full merged tree, including keys SiteConfig does not model.
	Settings map[string]any `json:"settings" yaml:"settings"`
}

// ModuleInfo records a module that ran during the build.
type ModuleInfo struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
}

// Page returns the page registered under name.
func (m *Manifest) Page(name string) (module.Page, bool) {
	for _, p := range m.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return module.Page{}, false
}

// PageNames returns the page names in registration order.
func (m *Manifest) PageNames() []string {
	names := make([]string, len(m.Pages))
	for i, p := range m.Pages {
		names[i] = p.Name
	}
	return names
}

// ModuleNames returns the names of the modules in setup order.
func (m *Manifest) ModuleNames() []string {
	names := make([]string, len(m.Modules))
	for i, mi := range m.Modules {
		names[i] = mi.Name
	}
	return names
}
