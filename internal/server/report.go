package server

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 50rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; color: #222; }
.meta { color: #666; font-size: 0.9rem; border-bottom: 1px solid #ddd; padding-bottom: 0.5rem; }
.degraded { color: #a15c00; }
blockquote { border-left: 4px solid #e0b050; margin-left: 0; padding-left: 1rem; color: #555; }
</style>
</head>
<body>
<p class="meta">{{.Kind}} &middot; {{.Mode}} &middot; {{.Timestamp}}{{if .Models}} &middot; models: {{.Models}}{{end}}{{if .Degraded}} &middot; <span class="degraded">{{.Status}}</span>{{end}}</p>
{{.Body}}
</body>
</html>
`))

type reportView struct {
	Title     string
	Kind      string
	Mode      string
	Timestamp string
	Models    string
	Status    models.StepStatus
	Degraded  bool
	Body      template.HTML
}

// RenderReportHTML renders a stored run as a standalone HTML page. Image
// runs show their final prompt.
func RenderReportHTML(md goldmark.Markdown, res models.PipelineResult) ([]byte, error) {
	source := res.Artifact
	if res.Kind == models.KindImage {
		source = fmt.Sprintf("# Image: %s\n\n**Prompt:** %s\n", res.Metadata.Subject, res.Artifact)
	}

	var body bytes.Buffer
	if err := md.Convert([]byte(source), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	view := reportView{
		Title:     res.Metadata.Subject,
		Kind:      res.Kind,
		Mode:      res.Metadata.Mode,
		Timestamp: res.Metadata.Timestamp.Format(time.RFC1123),
		Models:    strings.Join(res.Metadata.ModelsUsed, ", "),
		Status:    res.Status,
		Degraded:  res.Degraded(),
		// goldmark escapes raw HTML unless WithUnsafe is set.
		Body: template.HTML(body.String()),
	}

	var page bytes.Buffer
	if err := reportPage.Execute(&page, view); err != nil {
		return nil, fmt.Errorf("render report page: %w", err)
	}
	return page.Bytes(), nil
}
