package module

// Page is a registrable route backed by a source file.
type Page struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Path string `json:"path" yaml:"path" validate:"required"`
	// File is relative to the site source root.
	File string `json:"file" yaml:"file" validate:"required"`
	// Module is the module that pushed the entry; filled in by the builder.
	Module string `json:"module" yaml:"module"`
}

// PageList is the ordered page list handed to "pages:extend" hooks.
type PageList struct {
	owner   string
	entries []Page
}

// Push appends pages, attributing them to the module running the hook.
func (l *PageList) Push(pages ...Page) {
	for _, p := range pages {
		p.Module = l.owner
		l.entries = append(l.entries, p)
	}
}

// Len returns the number of pages pushed so far, by every module.
func (l *PageList) Len() int { return len(l.entries) }

// DirList is the ordered import-directory list handed to "imports:dirs" hooks.
type DirList struct {
	owner   string
	entries []ImportDir
}

// ImportDir is a directory enabling auto-resolution of symbols beneath it.
type ImportDir struct {
	Dir    string `json:"dir" yaml:"dir"`
	Module string `json:"module" yaml:"module"`
}

// Push appends directories, attributing them to the module running the hook.
func (l *DirList) Push(dirs ...string) {
	for _, d := range dirs {
		l.entries = append(l.entries, ImportDir{Dir: d, Module: l.owner})
	}
}

// Len returns the number of directories pushed so far.
func (l *DirList) Len() int { return len(l.entries) }
