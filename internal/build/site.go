package build

// SiteConfig is the typed view of the merged configuration tree. Every field
// is passed through to the manifest unchanged.
type SiteConfig struct {
	App               AppConfig        `koanf:"app" json:"app" yaml:"app"`
	CSS               []string         `koanf:"css" json:"css,omitempty" yaml:"css,omitempty"`
	Build             BuildOptions     `koanf:"build" json:"build" yaml:"build"`
	Bundler           BundlerOptions   `koanf:"bundler" json:"bundler" yaml:"bundler"`
	Components        ComponentsConfig `koanf:"components" json:"components" yaml:"components"`
	Imports           ImportsConfig    `koanf:"imports" json:"imports" yaml:"imports"`
	Plugins           []Plugin         `koanf:"plugins" json:"plugins,omitempty" yaml:"plugins,omitempty"`
	CompatibilityDate string           `koanf:"compatibility_date" json:"compatibility_date,omitempty" yaml:"compatibility_date,omitempty"`
	Devtools          DevtoolsConfig   `koanf:"devtools" json:"devtools" yaml:"devtools"`
	RuntimeConfig     RuntimeConfig    `koanf:"runtime_config" json:"-" yaml:"-"`
}

type AppConfig struct {
	Head Head `koanf:"head" json:"head" yaml:"head"`
}

// Head is the document head applied to every page.
type Head struct {
	Title string    `koanf:"title" json:"title,omitempty" yaml:"title,omitempty"`
	Meta  []MetaTag `koanf:"meta" json:"meta,omitempty" yaml:"meta,omitempty"`
	Link  []LinkTag `koanf:"link" json:"link,omitempty" yaml:"link,omitempty"`
}

// MetaTag is one <meta> element. HID is an optional identity used to let a
// later fragment replace a tag declared earlier.
type MetaTag struct {
	Charset  string `koanf:"charset" json:"charset,omitempty" yaml:"charset,omitempty"`
	Name     string `koanf:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Property string `koanf:"property" json:"property,omitempty" yaml:"property,omitempty"`
	Content  string `koanf:"content" json:"content,omitempty" yaml:"content,omitempty"`
	HID      string `koanf:"hid" json:"hid,omitempty" yaml:"hid,omitempty"`
}

type LinkTag struct {
	Rel  string `koanf:"rel" json:"rel" yaml:"rel"`
	Type string `koanf:"type" json:"type,omitempty" yaml:"type,omitempty"`
	Href string `koanf:"href" json:"href" yaml:"href"`
}

type BuildOptions struct {
	Transpile []string `koanf:"transpile" json:"transpile,omitempty" yaml:"transpile,omitempty"`
}

type BundlerOptions struct {
	SSRNoExternal []string `koanf:"ssr_no_external" json:"ssr_no_external,omitempty" yaml:"ssr_no_external,omitempty"`
}

type ComponentsConfig struct {
	Dirs []string `koanf:"dirs" json:"dirs,omitempty" yaml:"dirs,omitempty"`
}

type ImportsConfig struct {
	Dirs []string `koanf:"dirs" json:"dirs,omitempty" yaml:"dirs,omitempty"`
}

// Plugin is a script loaded by the front-end. Mode is "client", "server" or
// empty for both.
type Plugin struct {
	Src  string `koanf:"src" json:"src" yaml:"src"`
	Mode string `koanf:"mode" json:"mode,omitempty" yaml:"mode,omitempty"`
}

type DevtoolsConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
}

// RuntimeConfig describes the values exposed to the browser at runtime.
type RuntimeConfig struct {
	// Public holds static values.
	Public map[string]any `koanf:"public"`
	// PublicEnv maps a public key to the environment variable supplying it.
	PublicEnv map[string]string `koanf:"public_env"`
}

// dedupeMeta keeps the last tag for each non-empty HID at the position of the
// first one, so layered fragments can override a tag without duplicating it.
func dedupeMeta(tags []MetaTag) []MetaTag {
	out := make([]MetaTag, 0, len(tags))
	index := make(map[string]int)
	for _, t := range tags {
		if t.HID == "" {
			out = append(out, t)
			continue
		}
		if i, ok := index[t.HID]; ok {
			out[i] = t
			continue
		}
		index[t.HID] = len(out)
		out = append(out, t)
	}
	return out
}
