// Package check evaluates per-request checks and end-of-run thresholds.
package check

import (
	"fmt"
	"net/http"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/request"
)

// StatusOK is the name of the status check applied to every request.
const StatusOK = "status is 200"

// Check is a named predicate over one outcome.
type Check struct {
	Name string
	Fn   func(request.Outcome) bool
}

// Result is the verdict of one check for one outcome.
type Result struct {
	Name   string
	Passed bool
}

// StandardChecks returns the status check, plus connection and response
// ceilings when timeouts is non-nil.
func StandardChecks(timeouts *config.TimeoutExpectations) []Check {
	checks := []Check{StatusIs(http.StatusOK)}

	if timeouts != nil {
		checks = append(checks,
			ConnectionWithin(timeouts.Connection.Milliseconds()),
			ResponseWithin(timeouts.Response.Milliseconds()),
		)
	}

	return checks
}

// StatusIs passes when the response status equals code.
func StatusIs(code int) Check {
	name := StatusOK
	if code != http.StatusOK {
		name = fmt.Sprintf("status is %d", code)
	}
	return Check{
		Name: name,
		Fn: func(o request.Outcome) bool {
			return o.StatusCode == code
		},
	}
}

// ConnectionWithin passes when connecting took at most ms milliseconds.
func ConnectionWithin(ms int64) Check {
	return Check{
		Name: "connection ≤ " + config.FormatMillis(ms),
		Fn: func(o request.Outcome) bool {
			return o.ConnectMs <= float64(ms)
		},
	}
}

// ResponseWithin passes when the whole request took at most ms
// milliseconds.
func ResponseWithin(ms int64) Check {
	return Check{
		Name: "response ≤ " + config.FormatMillis(ms),
		Fn: func(o request.Outcome) bool {
			return o.DurationMs <= float64(ms)
		},
	}
}

// Run evaluates every check against o. A failing check never prevents the
// remaining checks from running.
func Run(o request.Outcome, checks []Check) []Result {
	results := make([]Result, len(checks))
	for i, c := range checks {
		results[i] = Result{Name: c.Name, Passed: c.Fn(o)}
	}
	return results
}
