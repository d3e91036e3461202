// Command generate-sample-report renders an HTML summary from synthetic
// outcomes, for previewing the report layout without a target server.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/check"
	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/executor"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
	"github.com/wesleyorama2/steadyrate/internal/performance/report"
	"github.com/wesleyorama2/steadyrate/internal/performance/request"
)

func main() {
	result := createSampleRunReport(rand.New(rand.NewSource(42)))

	outputPath := report.SummaryFileName(result.EndTime)
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	html, err := report.RenderHTML(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

// createSampleRunReport simulates two minutes at 20 iterations/s against
// two endpoints, with roughly one failure in a hundred requests.
func createSampleRunReport(rng *rand.Rand) *engine.RunReport {
	cfg := &config.RunConfig{
		Name:       "API Load Test",
		Endpoints:  []string{"https://api.example.com/users", "https://api.example.com/orders"},
		RPS:        20,
		Duration:   2 * time.Minute,
		VUs:        10,
		MaxVUs:     20,
		Sleep:      config.DefaultSleep,
		Timeouts:   &config.TimeoutExpectations{Connection: time.Second, Response: 10 * time.Second},
		Thresholds: config.DefaultThresholds(),
	}

	end := time.Now()
	start := end.Add(-cfg.Duration)
	checks := check.StandardChecks(cfg.Timeouts)
	agg := metrics.NewAggregator()
	agg.SetGauge(metrics.VUsMax, float64(cfg.MaxVUs))

	planned := cfg.PlannedIterations()
	for i := int64(0); i < planned; i++ {
		var iterMs float64
		for _, endpoint := range cfg.Endpoints {
			o := request.Outcome{
				Endpoint:      endpoint,
				StatusCode:    http.StatusOK,
				ConnectMs:     rng.Float64() * 3,
				DurationMs:    20 + rng.ExpFloat64()*35,
				Timestamp:     start.Add(time.Duration(i) * time.Second / time.Duration(cfg.RPS)),
				BytesSent:     180,
				BytesReceived: 1200 + rng.Int63n(800),
			}
			if rng.Intn(100) == 0 {
				o.StatusCode = http.StatusServiceUnavailable
			}
			o.Success = o.StatusCode >= 200 && o.StatusCode < 400

			agg.Incorporate(o)
			for _, r := range check.Run(o, checks) {
				agg.AddCheck(r.Name, r.Passed)
			}
			iterMs += o.DurationMs
		}
		iterMs += cfg.Sleep.Seconds() * 1000
		agg.AddIteration(iterMs)
		agg.SetGauge(metrics.VUs, float64(cfg.VUs+rng.Intn(cfg.MaxVUs-cfg.VUs+1)))
	}

	thresholds := check.Evaluate(agg, cfg.Thresholds)
	result := &engine.RunReport{
		ID:         uuid.New(),
		Name:       cfg.Name,
		StartTime:  start,
		EndTime:    end,
		Duration:   cfg.Duration,
		Metrics:    agg.Snapshot(),
		Thresholds: thresholds,
		Passed:     check.Passed(thresholds),
		Scheduler: executor.Stats{
			StartTime:    start,
			Elapsed:      cfg.Duration,
			Planned:      planned,
			Issued:       planned,
			Completed:    planned,
			PeakVUs:      cfg.MaxVUs,
			MaxVUs:       cfg.MaxVUs,
			TargetRate:   cfg.RPS,
			RealizedRate: cfg.RPS,
		},
		Config: engine.ConfigEcho{
			Endpoints:      cfg.Endpoints,
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
	for _, c := range checks {
		result.Checks = append(result.Checks, c.Name)
	}
	if reqs, ok := result.Metric(metrics.HTTPReqs); ok {
		result.TotalRequests = reqs.Count
	}

	return result
}
