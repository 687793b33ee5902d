package view

import (
	"bytes"
	"html/template"
)

// UnavailablePageData fills the page shown to browsers when a short link cannot be followed.
type UnavailablePageData struct {
	Status  int
	Title   string
	Code    string
	Message string
}

var unavailablePageTmpl = template.Must(template.New("unavailable_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
		}
		.status {
			font-size: 0.82rem;
			letter-spacing: 0.08em;
			color: var(--muted);
		}
		p { color: var(--muted); }
	</style>
</head>
<body>
	<div class="card">
		<div class="status">{{.Status}}</div>
		<h1>{{.Title}}</h1>
		<p>{{if .Code}}Short link <strong>/{{.Code}}</strong>: {{end}}{{.Message}}</p>
	</div>
</body>
</html>
`))

// RenderUnavailablePage expands the template. Title defaults to "Link unavailable".
func RenderUnavailablePage(data UnavailablePageData) (string, error) {
	if data.Title == "" {
		data.Title = "Link unavailable"
	}
	var buf bytes.Buffer
	if err := unavailablePageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
