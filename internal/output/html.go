package output

import (
	"fmt"
	"html/template"
	"io"

	"github.com/buemura/scanward/pkg/types"
)

// HTMLFormatter renders a report as a self-contained HTML page with
// styled severity badges and expandable finding details.
type HTMLFormatter struct{}

func (f *HTMLFormatter) Format(w io.Writer, report *types.ScanReport) error {
	return htmlTpl.Execute(w, templateData{
		Scan:            report.Scan,
		Vulnerabilities: sortedVulnerabilities(report),
		Counts:          types.CountSeverities(report.Vulnerabilities),
		Reputation:      reputationLine(&report.Scan),
		Duration:        durationText(&report.Scan),
	})
}

type templateData struct {
	Scan            types.ScanRecord
	Vulnerabilities []types.Vulnerability
	Counts          types.SeverityCounts
	Reputation      string
	Duration        string
}

var funcMap = template.FuncMap{
	"cwe": cweText,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var htmlTpl = template.Must(template.New("report").Funcs(funcMap).Parse(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>scanward report: {{.Scan.TargetURL}}</title>
<style>%s</style>
</head>
<body>
<div class="container">
  <h1>Scan of {{.Scan.TargetURL}}</h1>

  <dl class="meta">
    <dt>ID</dt><dd><code>{{.Scan.ID}}</code></dd>
    <dt>Status</dt><dd><span class="status {{.Scan.Status}}">{{.Scan.Status}}</span> ({{.Scan.Progress}}%%)</dd>
    <dt>Type</dt><dd>{{.Scan.ScanType}}</dd>
    <dt>Duration</dt><dd>{{.Duration}}</dd>
    {{if .Reputation}}
    <dt>Reputation</dt>
    <dd>{{if .Scan.ReputationPermalink}}<a href="{{deref .Scan.ReputationPermalink}}">{{.Reputation}}</a>{{else}}{{.Reputation}}{{end}}</dd>
    {{end}}
  </dl>

  {{if .Scan.ErrorMessage}}<div class="error-box">{{.Scan.ErrorMessage}}</div>{{end}}

  <div class="summary-bar">
    <span class="badge critical">{{.Counts.Critical}} Critical</span>
    <span class="badge high">{{.Counts.High}} High</span>
    <span class="badge medium">{{.Counts.Medium}} Medium</span>
    <span class="badge low">{{.Counts.Low}} Low</span>
    <span class="total">{{.Counts.Total}} total vulnerabilities</span>
  </div>

  {{if not .Vulnerabilities}}
    <p class="no-findings">No vulnerabilities.</p>
  {{else}}
    <table>
      <thead>
        <tr><th>Severity</th><th>Type</th><th>Location</th><th>CWE</th></tr>
      </thead>
      <tbody>
        {{range .Vulnerabilities}}
        <tr>
          <td><span class="badge {{.Severity}}">{{.Severity}}</span></td>
          <td>
            {{.VulnType}}
            {{if or .Description .Evidence .Solution}}
            <details>
              <summary>Details</summary>
              {{if .Description}}<p>{{.Description}}</p>{{end}}
              {{if .Parameter}}<p><strong>Parameter:</strong> {{.Parameter}}</p>{{end}}
              {{if .Evidence}}<p><strong>Evidence:</strong> {{.Evidence}}</p>{{end}}
              {{if .Solution}}<p><strong>Solution:</strong> {{.Solution}}</p>{{end}}
            </details>
            {{end}}
          </td>
          <td>{{if .Method}}{{.Method}} {{end}}{{.Location}}</td>
          <td>{{cwe .}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  {{end}}
</div>
</body>
</html>`, cssStyles)))

const cssStyles = `
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;
     line-height:1.6;color:#1a1a2e;background:#f5f5fa;padding:2rem}
.container{max-width:960px;margin:0 auto}
h1{margin-bottom:1rem;font-size:1.8rem}
.summary-bar{display:flex;gap:.5rem;flex-wrap:wrap;align-items:center;margin-bottom:1.5rem}
.total{margin-left:.5rem;font-weight:600}
.badge{display:inline-block;padding:2px 10px;border-radius:12px;font-size:.8rem;font-weight:700;color:#fff;text-transform:uppercase}
.badge.critical{background:#d32f2f}
.badge.high{background:#e53935}
.badge.medium{background:#f9a825;color:#333}
.badge.low{background:#0288d1}
table{width:100%;border-collapse:collapse;margin-bottom:1rem}
th,td{text-align:left;padding:.5rem .75rem;border-bottom:1px solid #e0e0e0}
th{background:#eaeaea;font-weight:600}
tr:hover{background:#f0f0ff}
details{margin-top:.4rem}
summary{cursor:pointer;color:#1565c0;font-size:.85rem}
.error-box{background:#ffebee;color:#c62828;padding:.75rem 1rem;border-radius:6px;margin-bottom:1rem}
.no-findings{color:#666;font-style:italic}
.meta{display:grid;grid-template-columns:max-content 1fr;gap:.25rem 1rem;margin-bottom:1.5rem}
.meta dt{font-weight:600}
.status{font-weight:700}
.status.completed{color:#2e7d32}
.status.failed{color:#c62828}
.status.scanning{color:#f9a825}
`
