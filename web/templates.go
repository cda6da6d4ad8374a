// Package web carries the minimal HTML pages the redirect engine renders.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses the embedded page templates. Embedding keeps handlers
// renderable from any working directory, tests included.
func Templates() *template.Template {
	return template.Must(template.ParseFS(files, "templates/*.html"))
}
