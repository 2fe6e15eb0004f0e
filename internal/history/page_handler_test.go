package history

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/sitekit/internal/domain"
)

const pageTemplates = `
{{define "builds/list.html"}}{{range .Builds}}[{{.BuildID}}]{{end}} total={{.Pagination.Total}}{{end}}
{{define "builds/detail.html"}}build {{.Build.BuildID}}{{range .Build.Pages}} {{.Path}}{{end}}{{end}}
{{define "errors/400.html"}}bad request{{end}}
{{define "errors/404.html"}}not found{{end}}
{{define "errors/500.html"}}server error{{end}}
`

func setupPageRouter(t *testing.T, svc domain.BuildService, rebuilder Rebuilder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("builds").Parse(pageTemplates)))

	h := NewBuildPageHandler(svc, rebuilder)
	r.GET("/_builds", h.ListPage)
	r.GET("/_builds/:id", h.DetailPage)
	r.POST("/_builds", h.RebuildHTMX)
	return r
}

func TestBuildPageHandler_DetailPage(t *testing.T) {
	svc := NewBuildService(newMockRepo(), 0, nil)
	rec := &domain.BuildRecord{
		BuildID: "4c1d2e",
		Trigger: domain.TriggerWatch,
		Status:  domain.BuildSucceeded,
		Pages:   []domain.BuildPage{{Name: "docs", Path: "/docs/:slug", File: "docs.html", Module: "docs"}},
	}
	if err := svc.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	r := setupPageRouter(t, svc, &fakeRebuilder{})

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/_builds/1", http.StatusOK, "build 4c1d2e /docs/:slug"},
		{"/_builds/4c1d2e", http.StatusOK, "build 4c1d2e /docs/:slug"},
		{"/_builds/ffffff", http.StatusNotFound, "not found"},
		{"/_builds/0", http.StatusBadRequest, "bad request"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.code {
				t.Fatalf("status = %d; want %d", w.Code, tt.code)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body = %q; want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestBuildPageHandler_ListPage(t *testing.T) {
	svc := NewBuildService(newMockRepo(), 0, nil)
	for _, id := range []string{"b-1", "b-2"} {
		if err := svc.Record(context.Background(), &domain.BuildRecord{BuildID: id, Trigger: domain.TriggerStartup, Status: domain.BuildSucceeded}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	r := setupPageRouter(t, svc, &fakeRebuilder{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/_builds?page_size=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "[b-1][b-2] total=2") {
		t.Errorf("body = %q", body)
	}
}

func TestBuildPageHandler_RebuildHTMX(t *testing.T) {
	tests := []struct {
		name      string
		rebuilder *fakeRebuilder
		redirect  string
		toast     string
	}{
		{"succeeded", &fakeRebuilder{rec: &domain.BuildRecord{Status: domain.BuildSucceeded}}, "/_builds", "Build succeeded"},
		{"failed build", &fakeRebuilder{rec: &domain.BuildRecord{Status: domain.BuildFailed, Error: "bad yaml"}}, "/_builds", "Build failed: bad yaml"},
		{"no record", &fakeRebuilder{err: domain.ErrInternal}, "", "Rebuild failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupPageRouter(t, NewBuildService(newMockRepo(), 0, nil), tt.rebuilder)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/_builds", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if got := w.Header().Get("HX-Redirect"); got != tt.redirect {
				t.Errorf("HX-Redirect = %q; want %q", got, tt.redirect)
			}
			if got := w.Header().Get("HX-Trigger"); !strings.Contains(got, tt.toast) {
				t.Errorf("HX-Trigger = %q; want it to mention %q", got, tt.toast)
			}
			if len(tt.rebuilder.calls) != 1 || tt.rebuilder.calls[0] != domain.TriggerAPI {
				t.Errorf("rebuild calls = %v", tt.rebuilder.calls)
			}
		})
	}
}
