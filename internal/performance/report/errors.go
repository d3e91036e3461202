package report

import "fmt"

// RenderError reports a RunReport that cannot be rendered.
type RenderError struct {
	Metric string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	msg := "render failed"
	if e.Metric != "" {
		msg = fmt.Sprintf("render failed for metric %q", e.Metric)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
