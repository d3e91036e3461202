package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/check"
	"github.com/wesleyorama2/steadyrate/internal/performance/executor"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

// RunReport is the immutable result of one run.
type RunReport struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	TotalRequests int64 `json:"totalRequests"`

	// Metrics are sorted by name
	Metrics []metrics.Sample `json:"metrics"`

	Thresholds []check.ThresholdResult `json:"thresholds,omitempty"`
	Passed     bool                    `json:"passed"`

	// Checks are the names of the per-request checks, in evaluation order
	Checks []string `json:"checks"`

	// Interrupted is set when the run was cancelled before it finished
	Interrupted bool `json:"interrupted"`

	Scheduler executor.Stats `json:"scheduler"`
	Config    ConfigEcho     `json:"config"`
}

// ConfigEcho records the parameters a run was started with.
type ConfigEcho struct {
	Endpoints      []string                    `json:"endpoints"`
	RPS            float64                     `json:"rps"`
	Duration       time.Duration               `json:"duration"`
	VUs            int                         `json:"vus"`
	MaxVUs         int                         `json:"maxVus"`
	Sleep          time.Duration               `json:"sleep"`
	RequestTimeout time.Duration               `json:"requestTimeout"`
	Timeouts       *config.TimeoutExpectations `json:"timeoutExpectations,omitempty"`
	Thresholds     map[string][]string         `json:"thresholds"`
}

// Metric returns the named sample.
func (r *RunReport) Metric(name string) (metrics.Sample, bool) {
	for _, s := range r.Metrics {
		if s.Name == name {
			return s, true
		}
	}
	return metrics.Sample{}, false
}

// ThresholdsFor returns the threshold results of one metric.
func (r *RunReport) ThresholdsFor(metric string) []check.ThresholdResult {
	var results []check.ThresholdResult
	for _, t := range r.Thresholds {
		if t.Metric == metric {
			results = append(results, t)
		}
	}
	return results
}

func (e *Engine) buildReport(id uuid.UUID, stats executor.Stats) *RunReport {
	cfg := e.config
	end := time.Now()

	thresholds := check.Evaluate(e.aggregator, cfg.Thresholds)

	report := &RunReport{
		ID:         id,
		Name:       cfg.Name,
		StartTime:  stats.StartTime,
		EndTime:    end,
		Duration:   end.Sub(stats.StartTime),
		Metrics:    e.aggregator.Snapshot(),
		Thresholds: thresholds,
		Passed:     check.Passed(thresholds),
		Scheduler:  stats,
		Config: ConfigEcho{
			Endpoints:      append([]string(nil), cfg.Endpoints...),
			RPS:            cfg.RPS,
			Duration:       cfg.Duration,
			VUs:            cfg.VUs,
			MaxVUs:         cfg.MaxVUs,
			Sleep:          cfg.Sleep,
			RequestTimeout: cfg.RequestTimeout(),
			Timeouts:       cfg.Timeouts,
			Thresholds:     cfg.Thresholds,
		},
	}

	for _, c := range e.checks {
		report.Checks = append(report.Checks, c.Name)
	}

	if reqs, ok := report.Metric(metrics.HTTPReqs); ok {
		report.TotalRequests = reqs.Count
	}

	return report
}
