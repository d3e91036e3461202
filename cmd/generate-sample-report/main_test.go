package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
	"github.com/wesleyorama2/steadyrate/internal/performance/report"
)

func TestCreateSampleRunReport(t *testing.T) {
	result := createSampleRunReport(rand.New(rand.NewSource(1)))

	// 20/s for 2m against two endpoints
	assert.Equal(t, int64(4800), result.TotalRequests)
	assert.Len(t, result.Checks, 3)
	assert.Len(t, result.Thresholds, 2)

	iterations, ok := result.Metric(metrics.Iterations)
	require.True(t, ok)
	assert.Equal(t, int64(2400), iterations.Count)

	html, err := report.RenderHTML(result)
	require.NoError(t, err)
	assert.Contains(t, html, "API Load Test")
}
