// Package config loads and validates run configuration files.
package config

import (
	"time"
)

// Metric names that have default thresholds.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
)

const (
	// DefaultSleep is the pause between two endpoint requests of one iteration.
	DefaultSleep = time.Second

	// DefaultRequestTimeout applies when no timeout expectations are configured.
	DefaultRequestTimeout = 60 * time.Second
)

// RunConfig is the validated, in-memory form of a configuration file.
// It is read-only for the lifetime of a run.
type RunConfig struct {
	// Name labels the run in reports
	Name string

	// Endpoints are requested in order on every iteration
	Endpoints []string

	// RPS is the iteration arrival rate per second
	RPS float64

	// Duration is the scheduling window
	Duration time.Duration

	// VUs is the number of pre-allocated virtual users
	VUs int

	// MaxVUs bounds VU pool growth
	MaxVUs int

	// Headers are attached to every request
	Headers map[string]string

	// Timeouts enables the connection/response checks when set
	Timeouts *TimeoutExpectations

	// Sleep is the pause between endpoint requests within one iteration
	Sleep time.Duration

	// Thresholds maps metric names to k6-style expressions, e.g. "p(95)<500"
	Thresholds map[string][]string
}

// TimeoutExpectations are the connection and response time ceilings used
// by the per-request checks.
type TimeoutExpectations struct {
	Connection time.Duration
	Response   time.Duration
}

// RequestTimeout returns the hard per-request deadline.
func (c *RunConfig) RequestTimeout() time.Duration {
	if c.Timeouts == nil {
		return DefaultRequestTimeout
	}
	return c.Timeouts.Connection + c.Timeouts.Response
}

// PlannedIterations returns ceil(rps * durationSeconds).
func (c *RunConfig) PlannedIterations() int64 {
	return PlannedTicks(c.RPS, c.Duration)
}

// PlannedTicks returns the number of arrivals a constant rate produces
// within d.
func PlannedTicks(rps float64, d time.Duration) int64 {
	n := rps * d.Seconds()
	whole := int64(n)
	// tolerate float noise such as 10 * 2.0000000001
	if n-float64(whole) > 1e-9 {
		whole++
	}
	return whole
}

// DefaultThresholds returns the thresholds applied when a file defines none.
func DefaultThresholds() map[string][]string {
	return map[string][]string{
		MetricHTTPReqDuration: {"p(95)<500"},
		MetricHTTPReqFailed:   {"rate<0.01"},
	}
}

// fileConfig mirrors the on-disk document. YAML files are converted to
// JSON before decoding, so only json tags are needed.
//
// Example JSON:
//
//	{
//	  "rps": 10,
//	  "duration": "30s",
//	  "vus": 5,
//	  "endpoints": ["https://api.example.com/health"],
//	  "x-apikey": "secret",
//	  "timeoutExpectations": {"connection": "1s", "response": "10s"}
//	}
type fileConfig struct {
	Name       string              `json:"name,omitempty"`
	RPS        float64             `json:"rps"`
	Duration   *Duration           `json:"duration"`
	VUs        int                 `json:"vus"`
	MaxVUs     int                 `json:"maxVus,omitempty"`
	Endpoints  []string            `json:"endpoints"`
	Headers    map[string]string   `json:"headers,omitempty"`
	Sleep      *Duration           `json:"sleep,omitempty"`
	Timeouts   *fileTimeouts       `json:"timeoutExpectations,omitempty"`
	Thresholds map[string][]string `json:"thresholds,omitempty"`
}

type fileTimeouts struct {
	Connection *Duration `json:"connection"`
	Response   *Duration `json:"response"`
}
