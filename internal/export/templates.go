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

var pageTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	content, err := templateFS.ReadFile("templates/page.html")
	if err != nil {
		// Fallback to built-in template if file not found
		pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(string(content)))
}

// TemplateData holds data for page template rendering
type TemplateData struct {
	Title       string
	Icon        string
	ContentHTML template.HTML
	Summary     string
	Tags        []string
	Author      string
	UpdatedAt   time.Time
}

// RenderPageHTML renders the page template with provided data
func RenderPageHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Icon}} {{.Title}}</h1>
  {{.ContentHTML}}
</body>
</html>`
