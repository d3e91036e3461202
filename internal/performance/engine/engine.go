// Package engine runs a configured load test and produces its RunReport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/check"
	"github.com/wesleyorama2/steadyrate/internal/performance/executor"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
	"github.com/wesleyorama2/steadyrate/internal/performance/request"
)

// DefaultProgressInterval is how often progress callbacks fire.
const DefaultProgressInterval = time.Second

// Engine is the orchestrator for one run.
//
// It coordinates:
//   - the arrival-rate executor and its VU pool
//   - request execution against every endpoint
//   - per-request checks and metric aggregation
//   - threshold evaluation once the run has drained
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("config.json")
//	eng, _ := engine.NewEngine(cfg)
//	report, _ := eng.Run(context.Background())
//	fmt.Printf("Thresholds passed: %v\n", report.Passed)
type Engine struct {
	config   *config.RunConfig
	logger   zerolog.Logger
	requests *request.Executor
	checks   []check.Check

	aggregator *metrics.Aggregator
	sink       *metrics.Aggregator
	executor   *executor.ConstantArrivalRate

	progressFn       func(Progress)
	progressInterval time.Duration

	mu      sync.Mutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRequestExecutor replaces the request executor.
func WithRequestExecutor(r *request.Executor) Option {
	return func(e *Engine) {
		e.requests = r
	}
}

// WithAggregator records metrics into a instead of a fresh aggregator, so
// the caller can read them while the run is in progress.
func WithAggregator(a *metrics.Aggregator) Option {
	return func(e *Engine) {
		e.sink = a
	}
}

// WithChecks replaces the standard checks.
func WithChecks(checks ...check.Check) Option {
	return func(e *Engine) {
		e.checks = checks
	}
}

// WithProgress registers fn to receive a Progress update every interval
// while the run is active. A non-positive interval uses
// DefaultProgressInterval.
func WithProgress(fn func(Progress), interval time.Duration) Option {
	return func(e *Engine) {
		e.progressFn = fn
		e.progressInterval = interval
	}
}

// Progress is a live view of a running test.
type Progress struct {
	Elapsed   time.Duration
	Fraction  float64
	Issued    int64
	Planned   int64
	InFlight  int
	ActiveVUs int
	Requests  int64
	Failed    int64
}

// NewEngine creates an engine for cfg.
//
// Returns an error if the configuration is invalid.
func NewEngine(cfg *config.RunConfig, options ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("nil run configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, &config.ConfigError{Err: err}
	}

	e := &Engine{
		config:           cfg,
		logger:           zerolog.Nop(),
		checks:           check.StandardChecks(cfg.Timeouts),
		progressInterval: DefaultProgressInterval,
	}

	for _, option := range options {
		option(e)
	}

	if e.requests == nil {
		e.requests = request.NewExecutor(request.WithClient(&http.Client{
			Transport: request.NewTransport(cfg.MaxVUs),
		}))
	}
	if e.progressInterval <= 0 {
		e.progressInterval = DefaultProgressInterval
	}

	return e, nil
}

// Run executes the test and blocks until every in-flight iteration has
// finished.
//
// Cancelling ctx interrupts the run; the report is still returned with
// Interrupted set. An error is returned only if the engine cannot start.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, errors.New("engine is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	cfg := e.config
	id := uuid.New()
	logger := e.logger.With().Str("run", id.String()).Logger()

	e.aggregator = e.sink
	if e.aggregator == nil {
		e.aggregator = metrics.NewAggregator()
	}
	e.aggregator.SetGauge(metrics.VUsMax, float64(cfg.MaxVUs))

	exec, err := executor.NewConstantArrivalRate(executor.Config{
		Rate:            cfg.RPS,
		Duration:        cfg.Duration,
		PreAllocatedVUs: cfg.VUs,
		MaxVUs:          cfg.MaxVUs,
	},
		executor.WithLogger(logger),
		executor.WithVUsCallback(func(active, _ int) {
			e.aggregator.SetGauge(metrics.VUs, float64(active))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	e.executor = exec

	logger.Info().
		Str("name", cfg.Name).
		Int("endpoints", len(cfg.Endpoints)).
		Float64("rps", cfg.RPS).
		Dur("duration", cfg.Duration).
		Msg("run started")

	stopProgress := e.startProgress(cfg.PlannedIterations())
	stats, runErr := exec.Run(ctx, e.iteration)
	stopProgress()
	e.requests.CloseIdleConnections()

	report := e.buildReport(id, stats)
	report.Interrupted = runErr != nil

	logEvent := logger.Info()
	if !report.Passed {
		logEvent = logger.Warn()
	}
	logEvent.
		Int64("requests", report.TotalRequests).
		Int64("missedTicks", stats.Missed).
		Bool("passed", report.Passed).
		Bool("interrupted", report.Interrupted).
		Msg("run finished")

	return report, nil
}

// iteration requests every endpoint in order, sleeping between requests
// but not after the last one.
func (e *Engine) iteration(ctx context.Context, vu *executor.VirtualUser) {
	cfg := e.config
	timeout := cfg.RequestTimeout()
	start := time.Now()

	for i, endpoint := range cfg.Endpoints {
		if ctx.Err() != nil {
			return
		}

		out := e.requests.Execute(ctx, endpoint, cfg.Headers, timeout)
		e.aggregator.Incorporate(out)
		for _, r := range check.Run(out, e.checks) {
			e.aggregator.AddCheck(r.Name, r.Passed)
		}

		if !out.Success {
			e.logger.Debug().
				Int("vu", vu.ID).
				Str("endpoint", endpoint).
				Int("status", out.StatusCode).
				Str("error", out.Error).
				Msg("request failed")
		}

		if i < len(cfg.Endpoints)-1 && !sleep(ctx, cfg.Sleep) {
			return
		}
	}

	e.aggregator.AddIteration(float64(time.Since(start)) / float64(time.Millisecond))
}

// sleep pauses for d and reports whether it ran to completion.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// startProgress emits progress until the returned func is called.
func (e *Engine) startProgress(planned int64) func() {
	if e.progressFn == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(e.progressInterval)
		defer ticker.Stop()

		start := time.Now()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.progressFn(e.progress(start, planned))
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (e *Engine) progress(start time.Time, planned int64) Progress {
	p := Progress{
		Elapsed:   time.Since(start),
		Fraction:  e.executor.Progress(),
		Issued:    e.executor.Issued(),
		Planned:   planned,
		InFlight:  e.executor.InFlight(),
		ActiveVUs: e.executor.ActiveVUs(),
	}
	if reqs, ok := e.aggregator.Sample(metrics.HTTPReqs); ok {
		p.Requests = reqs.Count
		p.Failed = reqs.Fails
	}
	return p
}

// IsRunning reports whether Run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run creates an engine for cfg and runs it.
func Run(ctx context.Context, cfg *config.RunConfig, options ...Option) (*RunReport, error) {
	e, err := NewEngine(cfg, options...)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}
