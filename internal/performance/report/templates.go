package report

// htmlTemplate is the report page. Styles are inline so the file can be
// opened offline.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Summary</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f4f6f9;
            --text-primary: #2c3e50;
            --text-secondary: #555555;
            --header-bg: #34495e;
            --pass-bg: #d4edda;
            --fail-bg: #f8d7da;
            --accent-success: #22c55e;
            --accent-error: #ef4444;
            --shadow: 0 0 10px rgba(0, 0, 0, 0.05);
        }

        body {
            font-family: 'Segoe UI', -apple-system, BlinkMacSystemFont, Roboto, Arial, sans-serif;
            background: var(--bg-secondary);
            color: var(--text-primary);
            padding: 20px;
            margin: 0;
        }

        .container { max-width: 1400px; margin: 0 auto; }

        h1 { text-align: center; margin-bottom: 0.25rem; }
        h2 { margin-top: 2rem; font-size: 1.25rem; }

        .meta {
            text-align: center;
            color: var(--text-secondary);
            font-size: 0.9rem;
        }

        .badge {
            display: inline-block;
            padding: 0.25rem 0.75rem;
            border-radius: 9999px;
            font-weight: 600;
            color: #ffffff;
        }
        .badge-ok { background: var(--accent-success); }
        .badge-ko { background: var(--accent-error); }

        .cards {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 1rem;
            margin-top: 1.5rem;
        }
        .card {
            background: var(--bg-primary);
            border-radius: 8px;
            padding: 1rem;
            box-shadow: var(--shadow);
        }
        .card .label { font-size: 0.8rem; color: var(--text-secondary); text-transform: uppercase; }
        .card .value { font-size: 1.5rem; font-weight: 700; }

        table {
            width: 100%;
            border-collapse: collapse;
            margin-top: 20px;
            background: var(--bg-primary);
            border-radius: 8px;
            overflow: hidden;
            box-shadow: var(--shadow);
        }
        th, td { padding: 12px 16px; text-align: left; vertical-align: top; }
        th { background: var(--header-bg); color: #ffffff; }
        tr:nth-child(even) { background-color: #f2f2f2; }
        .pass { background-color: var(--pass-bg) !important; }
        .fail { background-color: var(--fail-bg) !important; }
        .metric-note { font-size: 0.85em; color: var(--text-secondary); margin-top: 4px; display: block; }
        .mark-ok { color: var(--accent-success); font-weight: 700; }
        .mark-ko { color: var(--accent-error); font-weight: 700; }
        code { font-family: 'SF Mono', Monaco, Consolas, monospace; }
    </style>
</head>
<body>
<div class="container">
    <h1>{{.Name}}</h1>
    <p class="meta">
        Run {{.ID}} &middot; {{.StartTime.UTC.Format "2006-01-02 15:04:05 UTC"}} &middot; {{formatDuration .Duration}}
        &middot; {{if .Passed}}<span class="badge badge-ok">&#10003; PASSED</span>{{else}}<span class="badge badge-ko">&#10007; FAILED</span>{{end}}
        {{if .Interrupted}}&middot; <span class="badge badge-ko">INTERRUPTED</span>{{end}}
    </p>

    <div class="cards">
        <div class="card"><div class="label">Requests</div><div class="value">{{formatNumber .TotalRequests}}</div></div>
        <div class="card"><div class="label">Realized rate</div><div class="value">{{formatRate .Scheduler.RealizedRate}}/s</div></div>
        <div class="card"><div class="label">Failed</div><div class="value">{{.FailedRate}}</div></div>
        <div class="card"><div class="label">P(95) duration</div><div class="value">{{.P95}}</div></div>
        <div class="card"><div class="label">Missed ticks</div><div class="value">{{formatNumber .Scheduler.Missed}}</div></div>
    </div>

    <h2>Metrics</h2>
    <table>
        <thead>
            <tr>
                <th>Metric</th>
                <th>Count</th>
                <th>Avg</th>
                <th>P(95)</th>
                <th>Max</th>
                <th>Failed %</th>
            </tr>
        </thead>
        <tbody>
            {{range .Rows}}
            <tr{{if .Class}} class="{{.Class}}"{{end}}>
                <td>{{.Name}}{{if .Description}}<span class="metric-note">{{.Description}}</span>{{end}}</td>
                <td>{{.Count}}</td>
                <td>{{.Avg}}</td>
                <td>{{.P95}}</td>
                <td>{{.Max}}</td>
                <td>{{.Failed}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    {{if .Thresholds}}
    <h2>Thresholds</h2>
    <table>
        <thead>
            <tr><th></th><th>Metric</th><th>Expression</th><th>Value</th><th>Message</th></tr>
        </thead>
        <tbody>
            {{range .Thresholds}}
            <tr>
                <td>{{if .OK}}<span class="mark-ok">&#10003;</span>{{else}}<span class="mark-ko">&#10007;</span>{{end}}</td>
                <td>{{.Metric}}</td>
                <td><code>{{.Expression}}</code></td>
                <td>{{printf "%.4g" .Value}}</td>
                <td>{{.Message}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>
    {{end}}

    {{if .CheckRows}}
    <h2>Checks</h2>
    <table>
        <thead>
            <tr><th></th><th>Check</th><th>Passed</th><th>Breached</th><th>Rate</th></tr>
        </thead>
        <tbody>
            {{range .CheckRows}}
            <tr>
                <td>{{if .OK}}<span class="mark-ok">&#10003;</span>{{else}}<span class="mark-ko">&#10007;</span>{{end}}</td>
                <td>{{.Name}}</td>
                <td>{{formatNumber .Passes}}</td>
                <td>{{formatNumber .Fails}}</td>
                <td>{{.Rate}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>
    {{end}}

    <h2>Run</h2>
    <table>
        <tbody>
            <tr><td>Endpoints</td><td>{{range $i, $e := .Config.Endpoints}}{{if $i}}<br>{{end}}<code>{{$e}}</code>{{end}}</td></tr>
            <tr><td>Target rate</td><td>{{formatRate .Config.RPS}} iterations/s for {{formatDuration .Config.Duration}}</td></tr>
            <tr><td>VUs</td><td>{{.Config.VUs}} pre-allocated, {{.Config.MaxVUs}} max, {{.Scheduler.PeakVUs}} used</td></tr>
            <tr><td>Ticks</td><td>{{.Scheduler.Planned}} planned, {{.Scheduler.Issued}} issued, {{.Scheduler.Missed}} missed, {{.Scheduler.Late}} late</td></tr>
            <tr><td>Pause between requests</td><td>{{formatDuration .Config.Sleep}}</td></tr>
            <tr><td>Request timeout</td><td>{{formatDuration .Config.RequestTimeout}}</td></tr>
        </tbody>
    </table>
</div>
</body>
</html>
`
