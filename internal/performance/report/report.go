// Package report renders a RunReport as a self-contained HTML page and a
// plain-text summary.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

// CheckRow summarizes one per-request check.
type CheckRow struct {
	Name   string
	Passes int64
	Fails  int64
	Rate   string
	OK     bool
}

// pageData is the template input.
type pageData struct {
	*engine.RunReport
	Rows       []Row
	CheckRows  []CheckRow
	FailedRate string
	P95        string
}

var pageTemplate = template.Must(template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate))

// Render produces the HTML page and the text summary for r. It has no side
// effects.
func Render(r *engine.RunReport) (html, text string, err error) {
	html, err = RenderHTML(r)
	if err != nil {
		return "", "", err
	}
	text, err = RenderText(r)
	if err != nil {
		return "", "", err
	}
	return html, text, nil
}

// RenderHTML produces the self-contained HTML page.
func RenderHTML(r *engine.RunReport) (string, error) {
	rows, err := Rows(r)
	if err != nil {
		return "", err
	}

	data := pageData{
		RunReport:  r,
		Rows:       rows,
		CheckRows:  CheckRows(r),
		FailedRate: "-",
		P95:        "-",
	}
	if s, ok := r.Metric(metrics.HTTPReqFailed); ok {
		data.FailedRate = formatPercent(s.Rate())
	}
	if s, ok := r.Metric(metrics.HTTPReqDuration); ok && s.Count > 0 {
		data.P95 = formatValue(s.P95, "s")
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", &RenderError{Reason: "failed to execute template", Err: err}
	}

	return buf.String(), nil
}

// CheckRows summarizes the report's checks in evaluation order. Checks
// that never ran are left out.
func CheckRows(r *engine.RunReport) []CheckRow {
	if r == nil {
		return nil
	}

	var rows []CheckRow
	for _, name := range r.Checks {
		s, ok := r.Metric(name)
		if !ok || s.Count == 0 {
			continue
		}
		rows = append(rows, CheckRow{
			Name:   name,
			Passes: int64(s.Sum),
			Fails:  s.Fails,
			Rate:   formatPercent(s.Rate()),
			OK:     s.Fails == 0,
		})
	}
	return rows
}

// SummaryFileName returns the HTML file name for a summary produced at t, e.g.
// "summary-2024-05-01T10-20-30-123Z.html".
func SummaryFileName(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "summary-" + stamp + ".html"
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatNumber":   formatNumber,
		"formatRate":     func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// formatNumber formats a large number with commas.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
