package app

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"
)

const templateRoot = "templates"

// TemplateRenderer renders the server's HTML: built pages through page.html,
// the build history pages and the error pages. Files under
// templates/layouts and templates/partials are shared; every other .html
// file is a page, named by its path below templates/ ("builds/list.html"),
// compiled on its own copy of the shared set so pages can redefine blocks
// such as "head" and "content".
//
// In debug mode the tree is re-read for every response, so template edits
// show up without a restart.
type TemplateRenderer struct {
	fsys  fs.FS
	debug bool
	pages map[string]*template.Template
}

var _ render.HTMLRender = (*TemplateRenderer)(nil)

// NewTemplateRenderer loads templates from fsys (web.EmbeddedFS, or the web/
// directory on disk in debug mode). Outside debug mode a template error
// fails here rather than on the first request.
func NewTemplateRenderer(fsys fs.FS, debug bool) (*TemplateRenderer, error) {
	r := &TemplateRenderer{fsys: fsys, debug: debug}
	if debug {
		return r, nil
	}
	pages, err := loadTemplates(fsys)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.pages = pages
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *TemplateRenderer) Instance(name string, data any) render.Render {
	pages := r.pages
	if r.debug {
		var err error
		if pages, err = loadTemplates(r.fsys); err != nil {
			return templateRender{name: name, err: err}
		}
	}
	return templateRender{tmpl: pages[name], name: name, data: data}
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	shared := template.New("").Funcs(templateFuncs)
	var pageFiles []string

	err := fs.WalkDir(fsys, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".html" {
			return err
		}
		name := strings.TrimPrefix(p, templateRoot+"/")
		if dir, _, _ := strings.Cut(name, "/"); dir != "layouts" && dir != "partials" {
			pageFiles = append(pageFiles, p)
			return nil
		}
		return parseFile(fsys, shared.New(p), p)
	})
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, p := range pageFiles {
		set, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone shared templates for %s: %w", p, err)
		}
		name := strings.TrimPrefix(p, templateRoot+"/")
		if err := parseFile(fsys, set.New(name), p); err != nil {
			return nil, err
		}
		pages[name] = set
	}
	return pages, nil
}

func parseFile(fsys fs.FS, t *template.Template, p string) error {
	src, err := fs.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	if _, err := t.Parse(string(src)); err != nil {
		return fmt.Errorf("parse %s: %w", p, err)
	}
	return nil
}

var templateFuncs = template.FuncMap{
	// json embeds v in a <script> block, such as the runtime config.
	"json": func(v any) template.JS {
		b, err := json.Marshal(v)
		if err != nil {
			return "null"
		}
		return template.JS(b)
	},
	"formatDate": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	// trustedHTML is only for page bodies, which a build rendered from the
	// site tree. Never pass it request data.
	"trustedHTML": func(s string) template.HTML { return template.HTML(s) },
	"add":         func(a, b int) int { return a + b },
	"pager":       newPager,
}

type pagerLink struct {
	N       int
	Current bool
}

// pagerView is the pager of a listing; Prev and Next are 0 at either end.
type pagerView struct {
	Prev, Next int
	Links      []pagerLink
}

// newPager returns nil for listings that fit on one page.
func newPager(page, totalPages int) *pagerView {
	if totalPages <= 1 {
		return nil
	}
	v := &pagerView{Links: make([]pagerLink, totalPages)}
	for i := range v.Links {
		v.Links[i] = pagerLink{N: i + 1, Current: i+1 == page}
	}
	if page > 1 {
		v.Prev = page - 1
	}
	if page < totalPages {
		v.Next = page + 1
	}
	return v
}

// templateRender executes one page template.
type templateRender struct {
	tmpl *template.Template
	name string
	data any
	err  error
}

func (t templateRender) Render(w http.ResponseWriter) error {
	t.WriteContentType(w)
	switch {
	case t.err != nil:
		return t.err
	case t.tmpl == nil:
		return fmt.Errorf("template %q not found", t.name)
	}
	return t.tmpl.ExecuteTemplate(w, t.name, t.data)
}

func (templateRender) WriteContentType(w http.ResponseWriter) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
}
