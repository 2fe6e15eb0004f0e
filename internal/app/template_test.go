package app

import (
	"html/template"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/simp-lee/sitekit/internal/build"
	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/module"
	"github.com/simp-lee/sitekit/web"
)

func renderToString(t *testing.T, r *TemplateRenderer, name string, data any) (string, error) {
	t.Helper()
	w := httptest.NewRecorder()
	err := r.Instance(name, data).Render(w)
	if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	return w.Body.String(), err
}

func TestTemplateFuncs(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/funcs.html": &fstest.MapFile{Data: []byte(
			`<script>var cfg = {{ json .Public }};</script>` +
				`{{ formatDate .When }}|{{ trustedHTML .Body }}|{{ .Body }}|{{ add .Position 1 }}`)},
	}
	r, err := NewTemplateRenderer(fsys, false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}

	got, err := renderToString(t, r, "funcs.html", map[string]any{
		"Public":   map[string]any{"API_URL": "https://api.example", "LOGO": nil},
		"When":     time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
		"Body":     "<h1>Docs</h1>",
		"Position": 0,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		`var cfg = {"API_URL":"https://api.example","LOGO":null};`,
		"2026-03-01 09:05:00",
		"|<h1>Docs</h1>|",
		"|&lt;h1&gt;Docs&lt;/h1&gt;|",
		"|1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}

	if js := templateFuncs["json"].(func(any) template.JS)(func() {}); js != "null" {
		t.Errorf("json of an unencodable value = %q, want null", js)
	}
}

func TestNewPager(t *testing.T) {
	if newPager(1, 1) != nil || newPager(1, 0) != nil {
		t.Error("a single page needs no pager")
	}

	got := newPager(2, 3)
	want := &pagerView{Prev: 1, Next: 3, Links: []pagerLink{{1, false}, {2, true}, {3, false}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("newPager(2, 3) = %+v, want %+v", got, want)
	}

	if first := newPager(1, 4); first.Prev != 0 || first.Next != 2 {
		t.Errorf("first page = %+v", first)
	}
	if last := newPager(4, 4); last.Prev != 3 || last.Next != 0 {
		t.Errorf("last page = %+v", last)
	}
}

func TestTemplateRenderer_PagesOverrideSharedBlocks(t *testing.T) {
	r, err := NewTemplateRenderer(routeTestFS(), false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	if len(r.pages) != 3 {
		t.Errorf("loaded %d pages, want page.html and two error pages", len(r.pages))
	}

	notFound, err := renderToString(t, r, "errors/404.html", nil)
	if err != nil || notFound != "404" {
		t.Errorf("errors/404.html = %q, %v", notFound, err)
	}
	// each page keeps its own "content" block
	serverError, _ := renderToString(t, r, "errors/500.html", nil)
	if serverError != "500" {
		t.Errorf("errors/500.html = %q", serverError)
	}

	if _, err := renderToString(t, r, "builds/list.html", nil); err == nil || !strings.Contains(err.Error(), `"builds/list.html" not found`) {
		t.Errorf("missing template error = %v", err)
	}
}

func TestTemplateRenderer_ReleaseFailsEarly(t *testing.T) {
	fsys := routeTestFS()
	fsys["templates/errors/400.html"] = &fstest.MapFile{Data: []byte(`{{ define "content" }}{{ .Oops `)}

	if _, err := NewTemplateRenderer(fsys, false); err == nil || !strings.Contains(err.Error(), "templates/errors/400.html") {
		t.Fatalf("error = %v, want it to name the broken file", err)
	}

	// debug mode defers the error to the response
	r, err := NewTemplateRenderer(fsys, true)
	if err != nil {
		t.Fatalf("debug NewTemplateRenderer: %v", err)
	}
	if _, err := renderToString(t, r, "errors/404.html", nil); err == nil {
		t.Error("debug render should report the broken template")
	}
}

func TestTemplateRenderer_DebugReloads(t *testing.T) {
	fsys := routeTestFS()
	r, err := NewTemplateRenderer(fsys, true)
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	if got, _ := renderToString(t, r, "errors/404.html", nil); got != "404" {
		t.Fatalf("before edit = %q", got)
	}

	fsys["templates/errors/404.html"] = &fstest.MapFile{Data: []byte(`{{ template "base" . }}{{ define "content" }}gone{{ end }}`)}
	if got, _ := renderToString(t, r, "errors/404.html", nil); got != "gone" {
		t.Errorf("after edit = %q, want the edited template", got)
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	r, err := NewTemplateRenderer(web.EmbeddedFS, false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer(embedded): %v", err)
	}
	for _, name := range []string{pageTemplate, "builds/list.html", "builds/detail.html", "errors/400.html", "errors/404.html", "errors/500.html"} {
		if _, ok := r.pages[name]; !ok {
			t.Errorf("embedded template %q not loaded", name)
		}
	}

	t.Run("built page", func(t *testing.T) {
		snap := &Snapshot{
			Manifest: &build.Manifest{
				BuildID: "b-42",
				Site: build.SiteConfig{
					App: build.AppConfig{Head: build.Head{
						Title: "AIM",
						Meta:  []build.MetaTag{{Name: "description", Content: "Job & interview prep"}},
						Link:  []build.LinkTag{{Rel: "icon", Type: "image/x-icon", Href: "/favicon.ico"}},
					}},
				},
				Public: map[string]any{"MAIN_API_URL": "https://api.example"},
			},
			Bodies: map[string]string{"HomePage": "<h1>Home</h1>"},
		}
		body, err := renderToString(t, r, pageTemplate, pageData(snap, module.Page{Name: "HomePage", Path: "/"}, nil))
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		for _, want := range []string{
			"<title>AIM</title>",
			`name="description" content="Job &amp; interview prep"`,
			`rel="icon"`,
			`window.__RUNTIME_CONFIG__ = {"MAIN_API_URL":"https://api.example"}`,
			`data-build="b-42"`,
			"<h1>Home</h1>",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q:\n%s", want, body)
			}
		}
	})

	t.Run("build list with pager", func(t *testing.T) {
		rec := domain.BuildRecord{BuildID: "9d2f", Trigger: domain.TriggerWatch, Status: domain.BuildFailed}
		rec.ID = 12
		body, err := renderToString(t, r, "builds/list.html", map[string]any{
			"Builds":     []domain.BuildRecord{rec},
			"Pagination": &domain.ListResult[domain.BuildRecord]{Page: 2, PageSize: 1, Total: 3, TotalPages: 3},
			"BaseURL":    "/_builds",
			"CSRFToken":  "tok.sig",
		})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		for _, want := range []string{
			`<a href="/_builds/12">12</a>`,
			`<code>9d2f</code>`,
			`class="status-failed"`,
			`value="tok.sig"`,
			`<a href="/_builds?page=1">Previous</a>`,
			`<strong>2</strong>`,
			`<a href="/_builds?page=3">Next</a>`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
	})
}
