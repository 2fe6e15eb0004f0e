package layer

import (
	"strings"

	"github.com/knadh/koanf/v2"
)

// Tree is the merged configuration produced by reducing fragments.
type Tree struct {
	k       *koanf.Koanf
	modules []ModuleRef
	sources []string
}

// Modules returns the module references in declaration order, one per name.
func (t *Tree) Modules() []ModuleRef {
	return append([]ModuleRef(nil), t.modules...)
}

// Sources returns the fragments in the order they were merged.
func (t *Tree) Sources() []string {
	return append([]string(nil), t.sources...)
}

// Raw returns a copy of the merged settings.
func (t *Tree) Raw() map[string]any {
	return t.k.Raw()
}

// Unmarshal decodes the subtree at path (or everything for "") into out
// using `koanf` struct tags.
func (t *Tree) Unmarshal(path string, out any) error {
	return t.k.Unmarshal(path, out)
}

// Sub returns the map stored at a dotted key path, or nil.
func (t *Tree) Sub(path string) map[string]any {
	if path == "" {
		return t.Raw()
	}
	var cur any = t.k.Raw()
	for _, seg := range strings.Split(path, delim) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	m, _ := cur.(map[string]any)
	return m
}
