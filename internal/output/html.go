package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/openradius/authstorm/internal/report"
	"github.com/openradius/authstorm/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           report.Report
	ThresholdSummary *ThresholdSummary
}

// GenerateHTMLReport writes a standalone HTML page with the phase table,
// verdict, capacity estimate and threshold results.
func GenerateHTMLReport(w io.Writer, r report.Report, thresholdResults []threshold.Result) error {
	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           r,
		ThresholdSummary: SummarizeThresholds(thresholdResults),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatLatency": FormatLatency,
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"verdictClass": func(v report.Verdict) string {
			switch v {
			case report.VerdictFail:
				return "error"
			case report.VerdictDegraded:
				return "warning"
			default:
				return "success"
			}
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>authstorm Load Test Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; color: #2c3e50; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .card.warning { border-left-color: #f59e0b; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e9ecef;
        }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 12px; text-align: left; border-bottom: 1px solid #e9ecef; }
        th { background: #f8f9fa; font-weight: 600; color: #495057; }
        .pass { color: #10b981; font-weight: bold; }
        .fail { color: #ef4444; font-weight: bold; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>RADIUS Authentication Load Test</h1>
            {{if .Report.Server}}<div class="meta">Target: {{.Report.Server}}</div>{{end}}
            {{if .Report.RunID}}<div class="meta">Run: {{.Report.RunID}}</div>{{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Totals.Duration}} | Identities: {{.Report.Identities}}</div>
        </header>
        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Total Attempts</h3>
                    <div class="value">{{.Report.Totals.Total}}</div>
                </div>
                <div class="card success">
                    <h3>Accepted</h3>
                    <div class="value">{{.Report.Totals.Accept}}</div>
                    <div class="subvalue">{{formatPercent .Report.Totals.Accept .Report.Totals.Total}}%</div>
                </div>
                <div class="card warning">
                    <h3>Rejected</h3>
                    <div class="value">{{.Report.Totals.Reject}}</div>
                    <div class="subvalue">{{formatPercent .Report.Totals.Reject .Report.Totals.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Report.Totals.Errors}}</div>
                    <div class="subvalue">{{formatPercent .Report.Totals.Errors .Report.Totals.Total}}%</div>
                </div>
                <div class="card {{verdictClass .Report.Assessment.Verdict}}">
                    <h3>Verdict</h3>
                    <div class="value">{{.Report.Assessment.Verdict}}</div>
                    <div class="subvalue">{{formatFloat .Report.Assessment.ErrorPct}}% errors</div>
                </div>
            </div>

            <div class="section">
                <h2>Phases</h2>
                <table>
                    <thead>
                        <tr><th>Phase</th><th>Requests</th><th>RPS</th><th>Error %</th><th>Avg</th><th>P50</th><th>P95</th><th>P99</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Phases}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td>{{.Total}}</td>
                            <td>{{formatFloat .Throughput}}</td>
                            <td>{{formatPercent .Errors .Total}}</td>
                            <td>{{formatLatency .AvgLatency}}</td>
                            <td>{{formatLatency .P50}}</td>
                            <td>{{formatLatency .P95}}</td>
                            <td>{{formatLatency .P99}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            {{if .Report.Assessment.Remediation}}
            <div class="section">
                <h2>Recommendations</h2>
                <ul>{{range .Report.Assessment.Remediation}}<li>{{.}}</li>{{end}}</ul>
            </div>
            {{end}}

            {{with .Report.Capacity}}
            <div class="section">
                <h2>Capacity Estimate</h2>
                <div class="grid">
                    <div class="card"><h3>Sustained</h3><div class="value">{{formatFloat .SustainedThroughput}}</div><div class="subvalue">auth/sec</div></div>
                    <div class="card"><h3>Full Re-auth</h3><div class="value">{{formatFloat .RecoverySeconds}}s</div><div class="subvalue">{{.Identities}} identities</div></div>
                    <div class="card"><h3>Access Units</h3><div class="value">{{.Units}}</div><div class="subvalue">{{.DevicesPerUnit}} subscribers each</div></div>
                </div>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}}{{if .Phase}}{{"{"}}{{.Phase}}{{"}"}}{{end}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="pass">PASS</span>{{else}}<span class="fail">FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
