package report

import (
	"fmt"
	"math"
	"time"

	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

// Row classes.
const (
	ClassPass = "pass"
	ClassFail = "fail"
)

var metricDescriptions = map[string]string{
	metrics.HTTPReqDuration:   "Time taken for the server to respond to a request. Goal: 95% under 500ms.",
	metrics.HTTPReqConnecting: "Time spent establishing the TCP connection.",
	metrics.HTTPReqFailed:     "Proportion of requests that failed. Should be under 1%.",
	metrics.VUs:               "Number of Virtual Users (VUs) active during the test run.",
	metrics.VUsMax:            "Maximum number of Virtual Users allowed.",
	metrics.Iterations:        "Total times the endpoint sequence was executed.",
	metrics.IterationDuration: "Time to complete one pass over all endpoints, pauses included.",
	metrics.DataReceived:      "Amount of data received from the server (bytes).",
	metrics.DataSent:          "Amount of data sent to the server (bytes).",
	metrics.HTTPReqs:          "Total number of HTTP requests made.",
	metrics.Checks:            "Total number of checks performed.",
}

var metricUnits = map[string]string{
	metrics.HTTPReqDuration:   "s",
	metrics.HTTPReqConnecting: "s",
	metrics.IterationDuration: "s",
	metrics.DataReceived:      "bytes",
	metrics.DataSent:          "bytes",
	metrics.HTTPReqFailed:     "%",
	metrics.Checks:            "%",
}

// Row is one formatted line of the metrics table.
type Row struct {
	Name        string
	Description string
	Kind        metrics.Kind
	Unit        string

	Count  string
	Avg    string
	P95    string
	Max    string
	Failed string

	// Class is ClassFail if any threshold on the metric failed, ClassPass
	// if all passed, empty without thresholds
	Class string
}

// Rows formats every metric of r. It fails with *RenderError when a
// sample is inconsistent.
func Rows(r *engine.RunReport) ([]Row, error) {
	if r == nil {
		return nil, &RenderError{Reason: "nil report"}
	}

	rows := make([]Row, 0, len(r.Metrics))
	for _, s := range r.Metrics {
		if err := validateSample(s); err != nil {
			return nil, err
		}
		rows = append(rows, newRow(r, s))
	}
	return rows, nil
}

func newRow(r *engine.RunReport, s metrics.Sample) Row {
	row := Row{
		Name:        s.Name,
		Description: metricDescriptions[s.Name],
		Kind:        s.Kind,
		Unit:        unitFor(s),
		Count:       "-",
		Avg:         "-",
		P95:         "-",
		Max:         "-",
		Failed:      formatPercent(s.FailRate()),
		Class:       rowClass(r, s.Name),
	}

	switch s.Kind {
	case metrics.KindTrend:
		row.Count = fmt.Sprintf("%d", s.Count)
		row.Avg = formatValue(s.Avg(), row.Unit)
		row.P95 = formatValue(s.P95, row.Unit)
		row.Max = formatValue(s.Max, row.Unit)

	case metrics.KindCounter:
		row.Count = formatNumber(int64(math.Round(s.Sum)))
		row.Avg = formatPerSecond(s.Sum, r.Duration)

	case metrics.KindGauge:
		row.Count = fmt.Sprintf("%g", s.Value)
		row.Max = fmt.Sprintf("%g", s.Max)

	case metrics.KindRate:
		row.Count = fmt.Sprintf("%d", s.Count)
		row.Avg = formatPercent(s.Rate())
	}

	return row
}

// unitFor returns the display unit. Check rates are percentages.
func unitFor(s metrics.Sample) string {
	if unit, ok := metricUnits[s.Name]; ok {
		return unit
	}
	switch s.Kind {
	case metrics.KindTrend:
		return "s"
	case metrics.KindRate:
		return "%"
	}
	return ""
}

func rowClass(r *engine.RunReport, metric string) string {
	results := r.ThresholdsFor(metric)
	if len(results) == 0 {
		return ""
	}
	for _, t := range results {
		if !t.OK {
			return ClassFail
		}
	}
	return ClassPass
}

// formatValue renders a millisecond value in unit. Durations in "s" are
// converted from milliseconds.
func formatValue(ms float64, unit string) string {
	if unit == "s" {
		return fmt.Sprintf("%.2f s", ms/1000)
	}
	if unit == "" {
		return fmt.Sprintf("%.2f", ms)
	}
	return fmt.Sprintf("%.2f %s", ms, unit)
}

func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

func formatPerSecond(total float64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f/s", total/d.Seconds())
}

// validateSample checks the invariants the aggregator guarantees.
func validateSample(s metrics.Sample) error {
	fail := func(reason string) error {
		return &RenderError{Metric: s.Name, Reason: reason}
	}

	if s.Name == "" {
		return fail("metric has no name")
	}
	switch s.Kind {
	case metrics.KindCounter, metrics.KindGauge, metrics.KindRate, metrics.KindTrend:
	default:
		return fail(fmt.Sprintf("unknown kind %q", s.Kind))
	}
	if s.Count < 0 || s.Fails < 0 {
		return fail("negative count")
	}
	if s.Fails > s.Count {
		return fail(fmt.Sprintf("fails (%d) exceed count (%d)", s.Fails, s.Count))
	}
	for _, v := range []float64{s.Sum, s.Min, s.Max, s.Value, s.P50, s.P90, s.P95, s.P99} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fail("non-finite value")
		}
	}
	if s.Count > 0 && s.Min > s.Max {
		return fail(fmt.Sprintf("min (%g) exceeds max (%g)", s.Min, s.Max))
	}
	if s.Kind == metrics.KindTrend && s.Count > 0 && (s.P95 < s.Min || s.P95 > s.Max) {
		return fail("p95 outside [min, max]")
	}
	if s.Kind == metrics.KindRate && s.Sum > float64(s.Count) {
		return fail("rate above 100%")
	}
	return nil
}
