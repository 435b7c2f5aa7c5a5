package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses the page templates
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"selected": func(a, b string) bool { return a == b },
	}).ParseFS(templateFS, "templates/*.html")
}

// Static returns the asset tree rooted at static/
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
