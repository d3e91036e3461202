package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ConfigError is returned by LoadConfig and ParseConfig for any problem that
// prevents a run from starting.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "invalid configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the run invariants.
//
// Returns nil if valid, or a *ValidationErrors listing every problem.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.RPS <= 0 {
		errs.Add("rps", "rps must be > 0")
	}
	if c.Duration <= 0 {
		errs.Add("duration", "duration must be > 0")
	}
	if c.VUs <= 0 {
		errs.Add("vus", "vus must be > 0")
	}
	if c.MaxVUs < c.VUs {
		errs.Add("maxVus", fmt.Sprintf("maxVus (%d) must be >= vus (%d)", c.MaxVUs, c.VUs))
	}
	if c.Sleep < 0 {
		errs.Add("sleep", "sleep must be >= 0")
	}

	if len(c.Endpoints) == 0 {
		errs.Add("endpoints", "at least one endpoint is required")
	}
	for i, endpoint := range c.Endpoints {
		if err := validateEndpoint(endpoint); err != nil {
			errs.Add(fmt.Sprintf("endpoints[%d]", i), err.Error())
		}
	}

	if c.Timeouts != nil {
		if c.Timeouts.Connection <= 0 {
			errs.Add("timeoutExpectations.connection", "must be > 0")
		}
		if c.Timeouts.Response <= 0 {
			errs.Add("timeoutExpectations.response", "must be > 0")
		}
	}

	for metric, exprs := range c.Thresholds {
		for i, expr := range exprs {
			if _, err := ParseThresholdExpression(expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", metric, i), err.Error())
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", endpoint)
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^\s*(avg|min|max|med|count|rate|value|p\((\d+(?:\.\d+)?)\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// ThresholdExpression is a parsed threshold such as "p(95)<500".
type ThresholdExpression struct {
	// Aggregation is avg, min, max, med, count, rate, value or p
	Aggregation string

	// Percentile is set when Aggregation is "p"
	Percentile float64

	Operator string
	Value    float64
}

// ParseThresholdExpression parses a k6-style threshold expression.
func ParseThresholdExpression(expr string) (ThresholdExpression, error) {
	m := thresholdPattern.FindStringSubmatch(expr)
	if m == nil {
		return ThresholdExpression{}, fmt.Errorf("invalid threshold expression %q", expr)
	}

	te := ThresholdExpression{Aggregation: m[1], Operator: m[3]}

	if m[2] != "" {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p < 0 || p > 100 {
			return ThresholdExpression{}, fmt.Errorf("invalid percentile in %q", expr)
		}
		te.Aggregation = "p"
		te.Percentile = p
	}

	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return ThresholdExpression{}, fmt.Errorf("invalid threshold value in %q", expr)
	}
	te.Value = v

	return te, nil
}

// Compare applies the expression operator to actual.
func (te ThresholdExpression) Compare(actual float64) bool {
	switch te.Operator {
	case "<":
		return actual < te.Value
	case "<=":
		return actual <= te.Value
	case ">":
		return actual > te.Value
	case ">=":
		return actual >= te.Value
	case "==":
		return actual == te.Value
	case "!=":
		return actual != te.Value
	default:
		return false
	}
}
