package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"userdesk/internal/domain/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	Index    = "index.html"
	Chat     = "chat.html"
	NotFound = "404.html"
)

// RequestInfo is the part of the incoming request the templates may show.
type RequestInfo struct {
	Method string
	Path   string
	Host   string
}

// Data is the template context. User is nil for pages that show no account.
type Data struct {
	Request RequestInfo
	User    *model.User
}

func RequestInfoFrom(r *http.Request) RequestInfo {
	return RequestInfo{Method: r.Method, Path: r.URL.Path, Host: r.Host}
}

type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates once.
func New() (*Renderer, error) {
	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named template into a buffer first so a failing
// template never leaves a half-written page.
func (r *Renderer) Render(w io.Writer, name string, data Data) error {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return fmt.Errorf("view: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Page renders name as a complete HTML response with the given status.
func (r *Renderer) Page(w http.ResponseWriter, status int, name string, data Data) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
