package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/page.html"))

// TemplateData holds data for page template rendering
type TemplateData struct {
	Title       string
	Slug        string
	ContentHTML template.HTML
	Author      string
	Revision    string
	UpdatedAt   time.Time
}

// RenderPageHTML renders the standalone page template. ContentHTML is inserted
// without escaping.
func RenderPageHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
