package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/check"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

// Test server types for different scenarios
type serverType int

const (
	serverNormal serverType = iota
	serverError
	serverMixed
)

// createTestServer creates a test HTTP server with the specified behavior.
func createTestServer(st serverType) (*httptest.Server, *atomic.Int64) {
	var requestCount atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		switch st {
		case serverNormal:
			time.Sleep(5 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))

		case serverError:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server error"}`))

		case serverMixed:
			// every fifth request fails
			if count%5 == 0 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))

	return server, &requestCount
}

func testConfig(endpoints ...string) *config.RunConfig {
	return &config.RunConfig{
		Name:       "integration",
		Endpoints:  endpoints,
		RPS:        10,
		Duration:   time.Second,
		VUs:        2,
		MaxVUs:     4,
		Sleep:      0,
		Headers:    map[string]string{"x-apikey": "secret"},
		Thresholds: config.DefaultThresholds(),
	}
}

func TestEngineIntegration_HealthyServer(t *testing.T) {
	server, count := createTestServer(serverNormal)
	defer server.Close()

	report, err := Run(context.Background(), testConfig(server.URL+"/a", server.URL+"/b"))
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.ID.String())
	assert.Equal(t, "integration", report.Name)
	assert.False(t, report.Interrupted)
	assert.True(t, report.Passed)

	// 10 iterations x 2 endpoints
	assert.Equal(t, int64(10), report.Scheduler.Planned)
	assert.Equal(t, int64(10), report.Scheduler.Issued)
	assert.Equal(t, int64(0), report.Scheduler.Missed)
	assert.Equal(t, int64(20), report.TotalRequests)
	assert.Equal(t, int64(20), count.Load())

	iters, ok := report.Metric(metrics.Iterations)
	require.True(t, ok)
	assert.Equal(t, int64(10), iters.Count)

	status, ok := report.Metric(check.StatusOK)
	require.True(t, ok)
	assert.Equal(t, 1.0, status.Rate())

	vus, ok := report.Metric(metrics.VUs)
	require.True(t, ok)
	assert.LessOrEqual(t, vus.Max, 4.0)

	vusMax, ok := report.Metric(metrics.VUsMax)
	require.True(t, ok)
	assert.Equal(t, 4.0, vusMax.Value)

	require.Len(t, report.Thresholds, 2)
	for _, th := range report.Thresholds {
		assert.True(t, th.OK, th.Metric)
	}

	assert.Equal(t, 10.0, report.Config.RPS)
	assert.Equal(t, config.DefaultRequestTimeout, report.Config.RequestTimeout)
	assert.True(t, report.EndTime.After(report.StartTime))
}

func TestEngineIntegration_FailingServer(t *testing.T) {
	server, _ := createTestServer(serverError)
	defer server.Close()

	report, err := Run(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	assert.False(t, report.Passed)

	failed, ok := report.Metric(metrics.HTTPReqFailed)
	require.True(t, ok)
	assert.Equal(t, 1.0, failed.Rate())

	var failedThreshold *check.ThresholdResult
	for i := range report.Thresholds {
		if report.Thresholds[i].Metric == metrics.HTTPReqFailed {
			failedThreshold = &report.Thresholds[i]
		}
	}
	require.NotNil(t, failedThreshold)
	assert.False(t, failedThreshold.OK)
}

func TestEngineIntegration_MixedFailRate(t *testing.T) {
	server, _ := createTestServer(serverMixed)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.VUs = 1
	cfg.MaxVUs = 1

	report, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	failed, ok := report.Metric(metrics.HTTPReqFailed)
	require.True(t, ok)
	assert.Equal(t, int64(10), failed.Count)
	assert.InDelta(t, 0.2, failed.Rate(), 1e-9)
	assert.False(t, report.Passed)
}

func TestEngineIntegration_HeadersAreSent(t *testing.T) {
	var mu sync.Mutex
	keys := make(map[string]int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys[r.Header.Get("x-apikey")]++
		mu.Unlock()
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RPS = 5

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, keys["secret"])
	assert.Len(t, keys, 1)
}

func TestEngineIntegration_UnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig(url)
	cfg.RPS = 5

	report, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	reqs, ok := report.Metric(metrics.HTTPReqs)
	require.True(t, ok)
	assert.Equal(t, int64(5), reqs.Count)
	assert.Equal(t, int64(5), reqs.Fails)
	assert.False(t, report.Passed)
}

func TestEngineIntegration_TimeoutChecks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RPS = 5
	cfg.Timeouts = &config.TimeoutExpectations{Connection: time.Second, Response: 10 * time.Millisecond}

	report, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, time.Second+10*time.Millisecond, report.Config.RequestTimeout)

	conn, ok := report.Metric("connection ≤ 1s")
	require.True(t, ok)
	assert.Equal(t, 1.0, conn.Rate())

	resp, ok := report.Metric("response ≤ 10ms")
	require.True(t, ok)
	assert.Equal(t, 0.0, resp.Rate())
	assert.Equal(t, resp.Count, resp.Fails)
}

func TestEngineIntegration_SleepBetweenEndpoints(t *testing.T) {
	server, _ := createTestServer(serverMixed)
	defer server.Close()

	cfg := testConfig(server.URL+"/1", server.URL+"/2", server.URL+"/3")
	cfg.RPS = 1
	cfg.Duration = time.Second
	cfg.Sleep = 100 * time.Millisecond

	report, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	iter, ok := report.Metric(metrics.IterationDuration)
	require.True(t, ok)
	require.Equal(t, int64(1), iter.Count)
	// two pauses, none after the last endpoint
	assert.GreaterOrEqual(t, iter.Max, 200.0)
	assert.Less(t, iter.Max, 300.0)
}

func TestEngineIntegration_Interrupted(t *testing.T) {
	server, _ := createTestServer(serverNormal)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Duration = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := Run(ctx, cfg)
	require.NoError(t, err)

	assert.True(t, report.Interrupted)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Greater(t, report.Scheduler.Missed, int64(0))
}

func TestEngineIntegration_Progress(t *testing.T) {
	server, _ := createTestServer(serverNormal)
	defer server.Close()

	var mu sync.Mutex
	var updates []Progress

	cfg := testConfig(server.URL)
	_, err := Run(context.Background(), cfg, WithProgress(func(p Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	}, 200*time.Millisecond))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	for _, p := range updates {
		assert.Equal(t, int64(10), p.Planned)
		assert.LessOrEqual(t, p.Issued, p.Planned)
		assert.LessOrEqual(t, p.ActiveVUs, cfg.MaxVUs)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.MaxVUs = 1

	_, err := NewEngine(cfg)
	require.Error(t, err)

	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)

	_, err = NewEngine(nil)
	assert.Error(t, err)
}

func TestEngineIntegration_SharedAggregator(t *testing.T) {
	server, _ := createTestServer(serverNormal)
	defer server.Close()

	agg := metrics.NewAggregator()
	report, err := Run(context.Background(), testConfig(server.URL), WithAggregator(agg))
	require.NoError(t, err)

	reqs, ok := agg.Sample(metrics.HTTPReqs)
	require.True(t, ok)
	assert.Equal(t, report.TotalRequests, reqs.Count)
	assert.Equal(t, agg.Snapshot(), report.Metrics)
}
