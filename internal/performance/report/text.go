package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
)

// Marks used in the text summary.
const (
	MarkOK = "✓"
	MarkKO = "✗"
)

// RenderText produces the plain-text summary: run metadata, one line per
// metric, then checks and thresholds.
func RenderText(r *engine.RunReport) (string, error) {
	rows, err := Rows(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writeHeader(&b, r)

	b.WriteString("\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  \tMETRIC\tCOUNT\tAVG\tP(95)\tMAX\tFAILED")
	for _, row := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rowMark(row.Class), row.Name, row.Count, row.Avg, row.P95, row.Max, row.Failed)
	}
	if err := tw.Flush(); err != nil {
		return "", &RenderError{Reason: "failed to format table", Err: err}
	}

	if checks := CheckRows(r); len(checks) > 0 {
		b.WriteString("\n  checks\n")
		for _, c := range checks {
			mark := MarkOK
			if !c.OK {
				mark = MarkKO
			}
			fmt.Fprintf(&b, "    %s %s: %s (%d passed, %d breached)\n", mark, c.Name, c.Rate, c.Passes, c.Fails)
		}
	}

	if len(r.Thresholds) > 0 {
		b.WriteString("\n  thresholds\n")
		for _, t := range r.Thresholds {
			mark := MarkOK
			if !t.OK {
				mark = MarkKO
			}
			line := fmt.Sprintf("    %s %s %s", mark, t.Metric, t.Expression)
			if t.Message != "" {
				line += " (" + t.Message + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n")
	if r.Passed {
		b.WriteString("  result: PASSED\n")
	} else {
		b.WriteString("  result: FAILED\n")
	}

	return b.String(), nil
}

func writeHeader(b *strings.Builder, r *engine.RunReport) {
	fmt.Fprintf(b, "  run: %s (%s)\n", r.Name, r.ID)
	fmt.Fprintf(b, "  started: %s, took %s\n",
		r.StartTime.UTC().Format("2006-01-02 15:04:05 UTC"), formatDuration(r.Duration))
	fmt.Fprintf(b, "  scenario: %.2f iterations/s for %s, %d-%d VUs, %d endpoint(s)\n",
		r.Config.RPS, formatDuration(r.Config.Duration), r.Config.VUs, r.Config.MaxVUs, len(r.Config.Endpoints))

	s := r.Scheduler
	fmt.Fprintf(b, "  ticks: %d planned, %d issued, %d missed, %d late (realized %.2f/s, peak %d VUs)\n",
		s.Planned, s.Issued, s.Missed, s.Late, s.RealizedRate, s.PeakVUs)

	if r.Interrupted {
		b.WriteString("  interrupted before completion\n")
	}
}

func rowMark(class string) string {
	switch class {
	case ClassPass:
		return MarkOK
	case ClassFail:
		return MarkKO
	}
	return " "
}
