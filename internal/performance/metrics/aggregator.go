// Package metrics accumulates run-wide samples for every named metric.
package metrics

import (
	"math"
	"sort"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/steadyrate/internal/performance/request"
)

// Built-in metric names.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqDuration   = "http_req_duration"
	HTTPReqConnecting = "http_req_connecting"
	HTTPReqFailed     = "http_req_failed"
	Checks            = "checks"
	DataSent          = "data_sent"
	DataReceived      = "data_received"
	VUs               = "vus"
	VUsMax            = "vus_max"
	Iterations        = "iterations"
	IterationDuration = "iteration_duration"
)

// Kind is the aggregation type of a metric.
type Kind string

const (
	// KindCounter sums values.
	KindCounter Kind = "counter"
	// KindGauge keeps the latest value plus its min and max.
	KindGauge Kind = "gauge"
	// KindRate tracks the share of non-zero values.
	KindRate Kind = "rate"
	// KindTrend keeps a distribution.
	KindTrend Kind = "trend"
)

// Histogram bounds in microseconds.
const (
	histogramMin     = 1
	histogramMax     = 3600000000 // 1 hour
	histogramSigFigs = 3
)

// Sample is a point-in-time copy of one metric.
//
// For rate metrics Sum is the number of non-zero observations, so Rate()
// is Sum/Count. Fails counts observations flagged as failed: failed
// requests for the http_* metrics, failed checks for check rates.
type Sample struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"kind"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Fails int64   `json:"fails"`

	// Value is the latest gauge value
	Value float64 `json:"value"`

	// Percentiles, set for trends only
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Avg returns Sum/Count, or 0 without observations.
func (s Sample) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Rate returns the share of non-zero observations.
func (s Sample) Rate() float64 {
	return s.Avg()
}

// FailRate returns Fails/Count, or 0 without observations.
func (s Sample) FailRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Fails) / float64(s.Count)
}

// series is the mutable state behind a Sample.
type series struct {
	sample Sample
	hist   *hdrhistogram.Histogram
}

func (s *series) observe(value float64, failed bool) {
	smp := &s.sample

	if smp.Count == 0 || value < smp.Min {
		smp.Min = value
	}
	if smp.Count == 0 || value > smp.Max {
		smp.Max = value
	}
	smp.Count++
	if failed {
		smp.Fails++
	}

	switch smp.Kind {
	case KindGauge:
		smp.Value = value
	case KindRate:
		if value != 0 {
			smp.Sum++
		}
	case KindTrend:
		smp.Sum += value
		s.recordHistogram(value)
	default:
		smp.Sum += value
	}
}

func (s *series) recordHistogram(ms float64) {
	micros := int64(math.Round(ms * 1000))
	if micros < 0 {
		micros = 0
	}
	if micros > s.hist.HighestTrackableValue() {
		micros = s.hist.HighestTrackableValue()
	}
	// cannot fail once clamped to the trackable range
	_ = s.hist.RecordValue(micros)
}

// percentile returns the q-th percentile in milliseconds, clamped to the
// exact observed range.
func (s *series) percentile(q float64) float64 {
	if s.hist == nil || s.sample.Count == 0 {
		return 0
	}

	v := float64(s.hist.ValueAtQuantile(q)) / 1000
	return math.Min(math.Max(v, s.sample.Min), s.sample.Max)
}

func (s *series) snapshot() Sample {
	smp := s.sample
	if smp.Kind == KindTrend {
		smp.P50 = s.percentile(50)
		smp.P90 = s.percentile(90)
		smp.P95 = s.percentile(95)
		smp.P99 = s.percentile(99)
	}
	return smp
}

// Aggregator collects samples for one run. It is safe for concurrent use;
// every observation is applied under a single lock.
type Aggregator struct {
	mu     sync.Mutex
	series map[string]*series
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		series: make(map[string]*series),
	}
}

// seriesLocked returns the series for name, creating it with kind on first
// use. The kind of an existing series never changes.
func (a *Aggregator) seriesLocked(name string, kind Kind) *series {
	s, ok := a.series[name]
	if ok {
		return s
	}

	s = &series{sample: Sample{Name: name, Kind: kind}}
	if kind == KindTrend {
		s.hist = hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	}
	a.series[name] = s
	return s
}

// Add records one observation of a metric.
func (a *Aggregator) Add(name string, kind Kind, value float64, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seriesLocked(name, kind).observe(value, failed)
}

// Incorporate records every http_* and data_* metric for one outcome.
func (a *Aggregator) Incorporate(o request.Outcome) {
	failed := !o.Success

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seriesLocked(HTTPReqs, KindCounter).observe(1, failed)
	a.seriesLocked(HTTPReqDuration, KindTrend).observe(o.DurationMs, failed)
	a.seriesLocked(HTTPReqConnecting, KindTrend).observe(o.ConnectMs, failed)
	a.seriesLocked(HTTPReqFailed, KindRate).observe(boolValue(failed), failed)
	a.seriesLocked(DataSent, KindCounter).observe(float64(o.BytesSent), false)
	a.seriesLocked(DataReceived, KindCounter).observe(float64(o.BytesReceived), false)
}

// AddCheck records one check result in the checks rate and in the rate
// named after the check.
func (a *Aggregator) AddCheck(name string, passed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seriesLocked(Checks, KindRate).observe(boolValue(passed), !passed)
	a.seriesLocked(name, KindRate).observe(boolValue(passed), !passed)
}

// AddIteration records a completed iteration lasting ms milliseconds.
func (a *Aggregator) AddIteration(ms float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seriesLocked(Iterations, KindCounter).observe(1, false)
	a.seriesLocked(IterationDuration, KindTrend).observe(ms, false)
}

// SetGauge records the current value of a gauge.
func (a *Aggregator) SetGauge(name string, value float64) {
	a.Add(name, KindGauge, value, false)
}

// Sample returns a copy of the named metric.
func (a *Aggregator) Sample(name string) (Sample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[name]
	if !ok {
		return Sample{}, false
	}
	return s.snapshot(), true
}

// Percentile returns the q-th percentile (0-100) of a trend. ok is false
// for unknown metrics, non-trends and trends without observations.
func (a *Aggregator) Percentile(name string, q float64) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[name]
	if !ok || s.hist == nil || s.sample.Count == 0 {
		return 0, false
	}
	return s.percentile(q), true
}

// Snapshot returns copies of all metrics sorted by name.
func (a *Aggregator) Snapshot() []Sample {
	a.mu.Lock()
	samples := make([]Sample, 0, len(a.series))
	for _, s := range a.series {
		samples = append(samples, s.snapshot())
	}
	a.mu.Unlock()

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Name < samples[j].Name
	})
	return samples
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
