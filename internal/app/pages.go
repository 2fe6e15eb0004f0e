package app

import (
	"bytes"
	"fmt"
	"html"
	"io/fs"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/simp-lee/sitekit/internal/module"
)

// PageRenderer turns page source files into HTML fragments.
//
// Markdown files are converted with goldmark, HTML files are used verbatim
// and anything else is shown as escaped preformatted text. Page files are
// written by the site's developers, so raw HTML inside markdown is kept.
type PageRenderer struct {
	md goldmark.Markdown
}

// NewPageRenderer creates a PageRenderer with GitHub-flavored markdown.
func NewPageRenderer() *PageRenderer {
	return &PageRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Render reads p.File from src and returns its HTML.
func (r *PageRenderer) Render(src fs.FS, p module.Page) (string, error) {
	content, err := fs.ReadFile(src, p.File)
	if err != nil {
		return "", fmt.Errorf("read page %q: %w", p.Name, err)
	}

	switch strings.ToLower(path.Ext(p.File)) {
	case ".md", ".markdown":
		var buf bytes.Buffer
		if err := r.md.Convert(content, &buf); err != nil {
			return "", fmt.Errorf("render page %q: %w", p.Name, err)
		}
		return buf.String(), nil
	case ".html", ".htm":
		return string(content), nil
	default:
		return "<pre>" + html.EscapeString(string(content)) + "</pre>", nil
	}
}

// RenderAll renders every page, keyed by page name.
func (r *PageRenderer) RenderAll(src fs.FS, pages []module.Page) (map[string]string, error) {
	out := make(map[string]string, len(pages))
	for _, p := range pages {
		body, err := r.Render(src, p)
		if err != nil {
			return nil, err
		}
		out[p.Name] = body
	}
	return out, nil
}

const pageTemplate = "page.html"

// pageData is the template data for a built page.
func pageData(snap *Snapshot, p module.Page, params map[string]string) gin.H {
	site := snap.Manifest.Site
	return gin.H{
		"Head":    site.App.Head,
		"CSS":     site.CSS,
		"Public":  snap.Manifest.Public,
		"Page":    p,
		"Params":  params,
		"Body":    snap.Bodies[p.Name],
		"BuildID": snap.Manifest.BuildID,
	}
}
