package reporting

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/stepline-ci/stepline/templates"
)

const reportFilename = "report.html"

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Build Run {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
h1 { font-size: 1.3em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
tr.success td.status { color: #1a7f37; }
tr.warning td.status { color: #9a6700; }
tr.failure td.status, tr.exception td.status { color: #cf222e; font-weight: bold; }
pre { background: #f6f8fa; padding: 6px; margin: 2px 0; overflow-x: auto; }
details { margin: 2px 0; }
.meta { color: #57606a; margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Build Run {{.RunID}}</h1>
<p class="meta">
recipe: {{.Recipe}} ·
duration: {{formatDuration .Duration}} ·
exit code: {{.ExitCode}} ·
{{len .Steps}} steps, {{.FailedSteps}} failed
</p>
<table>
<tr><th>#</th><th>Step</th><th>Retcode</th><th>Status</th><th>Details</th></tr>
{{range .Steps}}
<tr class="{{getStatusClass .Status}}">
<td>{{.Index}}</td>
<td>{{.Name}}</td>
<td>{{.RetCode}}</td>
<td class="status">{{getStatusText .Status}}</td>
<td>
{{if .Summary}}<div>{{.Summary}}</div>{{end}}
{{if .StepText}}<div>{{.StepText}}</div>{{end}}
{{range .Logs}}
<details><summary>{{.Name}}</summary><pre>{{range .Lines}}{{.}}
{{end}}</pre></details>
{{end}}
</td>
</tr>
{{end}}
</table>
</body>
</html>
`

// HTMLSink writes a run report into the run's log directory.
type HTMLSink struct {
	tmpl *template.Template
}

// NewHTMLSink parses the report template.
func NewHTMLSink() (*HTMLSink, error) {
	tmpl, err := template.New("report").Funcs(templates.GetTemplateFunc()).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &HTMLSink{tmpl: tmpl}, nil
}

// Write renders the report to <dir>/report.html and returns the path.
func (s *HTMLSink) Write(dir string, report *RunReport) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("report directory is required")
	}
	path := filepath.Join(dir, reportFilename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := s.tmpl.Execute(f, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return path, nil
}
