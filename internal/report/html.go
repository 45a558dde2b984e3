package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sort"

	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/executor"
)

// HTMLEmitter writes a self-contained HTML page
type HTMLEmitter struct {
	Path string
}

var pageTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"duration": executor.FormatDuration,
	"percent": func(f float64) string {
		return fmt.Sprintf("%.2f%%", f*100)
	},
	"float": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
	"ms": func(f float64) string {
		return executor.FormatDuration(int64(f))
	},
	"sortedKeys": sortedKeys,
}).Parse(pageHTML))

func (e *HTMLEmitter) Emit(r *Report) error {
	if err := prepare(r, e.Path); err != nil {
		return err
	}
	data, err := RenderHTML(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.Path, data, config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderHTML renders the report page in memory
func RenderHTML(r *Report) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #1f2328; }
h1 { margin-bottom: 0.25rem; }
.meta { color: #59636e; margin-bottom: 1.5rem; }
table { border-collapse: collapse; margin-bottom: 1.5rem; width: 100%; }
th, td { border: 1px solid #d1d9e0; padding: 0.4rem 0.6rem; text-align: left; vertical-align: top; }
th { background: #f6f8fa; }
.pass { color: #1a7f37; font-weight: 600; }
.fail { color: #cf222e; font-weight: 600; }
.verdict { font-size: 1.2rem; margin-bottom: 1rem; }
pre { white-space: pre-wrap; word-break: break-all; margin: 0; font-size: 0.8rem; max-height: 12rem; overflow: auto; }
ul { margin: 0; padding-left: 1.2rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Run {{.ID}} against {{.Target}}{{if not .GeneratedAt.IsZero}}, generated {{.GeneratedAt.UTC.Format "2006-01-02 15:04:05 MST"}}{{end}}</div>
<div class="verdict">{{if .Passed}}<span class="pass">PASSED</span>{{else}}<span class="fail">FAILED</span>{{end}}</div>
{{with .Sanity}}
<p>Models: {{range $i, $m := .Models}}{{if $i}}, {{end}}{{$m}}{{end}}{{if .Cancelled}} <span class="fail">(cancelled)</span>{{end}}</p>
<table>
<tr><th>Kind</th><th>Total</th><th>Passed</th><th>Failed</th></tr>
{{range $kind, $c := .ByKind}}<tr><td>{{$kind}}</td><td>{{$c.Total}}</td><td>{{$c.Passed}}</td><td>{{$c.Failed}}</td></tr>
{{end}}<tr><th>all</th><th>{{.Counts.Total}}</th><th>{{.Counts.Passed}}</th><th>{{.Counts.Failed}}</th></tr>
</table>
<table>
<tr><th>Scenario</th><th>Kind</th><th>Model</th><th>Result</th><th>Status</th><th>Latency</th><th>Failures</th><th>Request</th><th>Response</th></tr>
{{range .Results}}<tr>
<td>{{.Scenario}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td>
<td>{{.Kind}}</td>
<td>{{.Model}}</td>
<td>{{if .Passed}}<span class="pass">PASS</span>{{else}}<span class="fail">FAIL</span>{{end}}</td>
<td>{{if .Status}}{{.Status}}{{else}}-{{end}}</td>
<td>{{duration .LatencyMs}}</td>
<td>{{if .Failures}}<ul>{{range .Failures}}<li>{{.}}</li>{{end}}</ul>{{end}}</td>
<td><pre>{{.Request}}</pre></td>
<td><pre>{{.Response}}</pre></td>
</tr>
{{end}}</table>
{{end}}
{{with .Load}}
<table>
<tr><th>Name</th><td>{{if .Name}}{{.Name}}{{else}}-{{end}}</td><th>Status</th><td>{{.Status}}</td></tr>
<tr><th>Model</th><td>{{.Model}}</td><th>Users</th><td>{{.Users}}</td></tr>
<tr><th>Spawn rate</th><td>{{float .SpawnRate}}/s</td><th>Run time</th><td>{{duration .RunTimeMs}}</td></tr>
</table>
<table>
<tr><th>Requests</th><th>Successes</th><th>Network errors</th><th>Validation errors</th><th>Dropped</th><th>Error rate</th><th>Req/s</th></tr>
<tr><td>{{.TotalRequests}}</td><td>{{.Successes}}</td><td>{{.NetworkErrors}}</td><td>{{.ValidationErrors}}</td><td>{{.Dropped}}</td><td>{{percent .ErrorRate}}</td><td>{{float .RequestsPerSec}}</td></tr>
</table>
<table>
<tr><th>Min</th><th>Avg</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr>
<tr><td>{{duration .Latency.MinMs}}</td><td>{{ms .Latency.AvgMs}}</td><td>{{duration .Latency.P50Ms}}</td><td>{{duration .Latency.P90Ms}}</td><td>{{duration .Latency.P95Ms}}</td><td>{{duration .Latency.P99Ms}}</td><td>{{duration .Latency.MaxMs}}</td></tr>
</table>
{{if .StatusCodes}}<table>
<tr><th>Status</th><th>Count</th></tr>
{{range $code, $n := .StatusCodes}}<tr><td>{{$code}}</td><td>{{$n}}</td></tr>
{{end}}</table>{{end}}
{{if .ErrorCategories}}<table>
<tr><th>Error</th><th>Count</th></tr>
{{$cats := .ErrorCategories}}{{range sortedKeys $cats}}<tr><td>{{.}}</td><td>{{index $cats .}}</td></tr>
{{end}}</table>{{end}}
<table>
<tr><th>User</th><th>Requests</th><th>Failures</th></tr>
{{range .PerUser}}<tr><td>{{.User}}</td><td>{{.Requests}}</td><td>{{.Failures}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`
