package check

import (
	"fmt"
	"sort"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

// Source provides the final metric values thresholds are evaluated on.
// *metrics.Aggregator implements it.
type Source interface {
	Sample(name string) (metrics.Sample, bool)
	Percentile(name string, q float64) (float64, bool)
}

// ThresholdResult is the verdict of one threshold expression.
type ThresholdResult struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	OK         bool    `json:"ok"`
	Value      float64 `json:"value"`
	Message    string  `json:"message,omitempty"`
}

// Evaluate checks every threshold against src. Results are ordered by
// metric name, then by expression order in the configuration.
func Evaluate(src Source, thresholds map[string][]string) []ThresholdResult {
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []ThresholdResult
	for _, name := range names {
		for _, expr := range thresholds[name] {
			results = append(results, evaluateOne(src, name, expr))
		}
	}
	return results
}

// Passed reports whether every threshold held.
func Passed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func evaluateOne(src Source, metric, expr string) ThresholdResult {
	result := ThresholdResult{Metric: metric, Expression: expr}

	te, err := config.ParseThresholdExpression(expr)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	sample, ok := src.Sample(metric)
	if !ok || sample.Count == 0 {
		result.Message = fmt.Sprintf("no samples for metric %q", metric)
		return result
	}

	value, err := aggregate(src, sample, te)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Value = value
	result.OK = te.Compare(value)
	if !result.OK {
		result.Message = fmt.Sprintf("%s: actual %.4g", expr, value)
	}
	return result
}

func aggregate(src Source, s metrics.Sample, te config.ThresholdExpression) (float64, error) {
	switch te.Aggregation {
	case "avg":
		return s.Avg(), nil
	case "min":
		return s.Min, nil
	case "max":
		return s.Max, nil
	case "count":
		return float64(s.Count), nil
	case "rate":
		if s.Kind != metrics.KindRate {
			return 0, fmt.Errorf("rate is not defined for %s metric %q", s.Kind, s.Name)
		}
		return s.Rate(), nil
	case "value":
		if s.Kind != metrics.KindGauge {
			return 0, fmt.Errorf("value is not defined for %s metric %q", s.Kind, s.Name)
		}
		return s.Value, nil
	case "med", "p":
		q := 50.0
		if te.Aggregation == "p" {
			q = te.Percentile
		}
		v, ok := src.Percentile(s.Name, q)
		if !ok {
			return 0, fmt.Errorf("percentiles are not defined for %s metric %q", s.Kind, s.Name)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unsupported aggregation %q", te.Aggregation)
}
