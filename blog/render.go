package blog

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"ms":   func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
}

// Renderer executes embedded pages inside the shared layout.
// Templates are parsed once, Render is safe for concurrent use.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, full := range names {
		name := path.Base(full)
		if name == layoutFile {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutFile, full)
		if err != nil {
			return nil, fmt.Errorf("blog: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render runs page name with data and returns the html.
func (r *Renderer) Render(name string, data any) (string, error) {
	t, ok := r.pages[name]
	if !ok {
		return "", fmt.Errorf("blog: no template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("blog: render %s: %w", name, err)
	}
	return buf.String(), nil
}
