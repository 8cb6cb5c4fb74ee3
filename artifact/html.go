package artifact

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"github.com/yuin/goldmark"

	"goa.design/runledger/summary"
)

func mul100(v float64) float64 { return v * 100 }

func renderMarkdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s)) // #nosec G203 -- escaped fallback, not raw input
	}
	return template.HTML(buf.String()) // #nosec G203 -- goldmark output rendered as the report body by design
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"mul100":         mul100,
	"renderMarkdown": renderMarkdown,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Suite.Name}} — {{.Run.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
.status-pass { color: #1a7f37; }
.status-fail { color: #b42318; }
.status-error { color: #b42318; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Suite.Name}}</h1>
<p>run {{.Run.RunID}} · mode {{.Run.Mode}} · exit status <strong>{{.Run.ExitStatus}}</strong></p>
<p>{{.Aggregates.CasesPass}}/{{.Aggregates.CasesTotal}} passed ({{printf "%.1f" (mul100 .Aggregates.PassRate)}}%)</p>
<table>
<tr><th>case</th><th>status</th><th>wall_ms</th><th>tool_calls</th><th>failure</th></tr>
{{range .Cases}}
<tr>
<td>{{.CaseID}}</td>
<td class="status-{{.Status}}">{{.Status}}</td>
<td>{{.WallMS}}</td>
<td>{{.ToolCalls}}</td>
<td>{{if .FailureMessage}}<strong>{{.FailureType}}</strong>: {{.FailureMessage | renderMarkdown}}{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// WriteHTMLReport renders s as a standalone HTML report at path.
func WriteHTMLReport(path string, s summary.Summary) error {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, s); err != nil {
		return fmt.Errorf("artifact: render report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}
