// Package web embeds the host's templates and static assets.
package web

import "embed"

// EmbeddedFS holds templates/ and static/. Release builds serve from it;
// debug mode reads the same tree from disk.
//
//go:embed templates static
var EmbeddedFS embed.FS
