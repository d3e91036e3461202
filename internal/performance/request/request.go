// Package request issues single HTTP GET requests and turns every result,
// including transport failures, into an Outcome value.
package request

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// DefaultUserAgent is sent unless the caller overrides it.
const DefaultUserAgent = "steadyrate/0.1"

// Outcome is the immutable record of one issued request.
type Outcome struct {
	Endpoint      string    `json:"endpoint"`
	StatusCode    int       `json:"statusCode"`
	ConnectMs     float64   `json:"connectMs"`
	DurationMs    float64   `json:"durationMs"`
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
	BytesSent     int64     `json:"bytesSent"`
	BytesReceived int64     `json:"bytesReceived"`
	Error         string    `json:"error,omitempty"`
}

// Executor issues GET requests with default headers and a per-request
// deadline. It is safe for concurrent use.
type Executor struct {
	client  *http.Client
	headers map[string]string
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// WithHeader adds a default header.
func WithHeader(key, value string) Option {
	return func(e *Executor) {
		e.headers[key] = value
	}
}

// NewExecutor creates an executor backed by a pooled transport.
func NewExecutor(options ...Option) *Executor {
	e := &Executor{
		client:  &http.Client{Transport: NewTransport(100)},
		headers: map[string]string{"User-Agent": DefaultUserAgent},
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// NewTransport returns a transport sized for maxConnsPerHost concurrent
// workers.
func NewTransport(maxConnsPerHost int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 1000
	t.MaxIdleConnsPerHost = maxConnsPerHost
	t.IdleConnTimeout = 90 * time.Second
	return t
}

// CloseIdleConnections releases pooled connections.
func (e *Executor) CloseIdleConnections() {
	e.client.CloseIdleConnections()
}

// Execute issues one GET against endpoint.
//
// headers are merged over the executor defaults. timeout bounds connection
// and response together and is derived from a context that ignores ctx's
// cancellation, so a run deadline never cuts an in-flight request short.
// Execute never fails: transport errors, DNS failures and deadlines are
// reported as an Outcome with Success=false and StatusCode=0.
func (e *Executor) Execute(ctx context.Context, endpoint string, headers map[string]string, timeout time.Duration) Outcome {
	start := time.Now()
	out := Outcome{Endpoint: endpoint, Timestamp: start}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	timer := &connectTimer{}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(reqCtx, timer.trace()), http.MethodGet, endpoint, nil)
	if err != nil {
		return e.fail(out, start, err)
	}

	for key, value := range e.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	out.BytesSent = requestSize(req)

	resp, err := e.client.Do(req)
	if err != nil {
		out.ConnectMs = timer.millis()
		return e.fail(out, start, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	out.DurationMs = millisSince(start)
	out.ConnectMs = timer.millis()
	out.BytesReceived = n + headerSize(resp.Header)

	if err != nil {
		// the body was cut short, most likely by the deadline
		out.Error = err.Error()
		return out
	}

	out.StatusCode = resp.StatusCode
	out.Success = resp.StatusCode >= 200 && resp.StatusCode < 400
	return out
}

func (e *Executor) fail(out Outcome, start time.Time, err error) Outcome {
	out.StatusCode = 0
	out.Success = false
	out.DurationMs = millisSince(start)
	out.Error = err.Error()
	return out
}

// requestSize approximates the bytes written for a body-less request.
func requestSize(req *http.Request) int64 {
	// "GET <uri> HTTP/1.1\r\nHost: <host>\r\n" ... "\r\n"
	size := len(req.Method) + len(req.URL.RequestURI()) + len(" HTTP/1.1\r\n")
	size += len("Host: \r\n") + len(req.URL.Host)
	return int64(size) + headerSize(req.Header) + 2
}

func headerSize(h http.Header) int64 {
	var size int
	for key, values := range h {
		for _, v := range values {
			size += len(key) + len(": ") + len(v) + len("\r\n")
		}
	}
	return int64(size)
}

func millisSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

// connectTimer measures TCP connect time. Dial callbacks may fire on
// transport goroutines after Do has returned, hence the lock.
type connectTimer struct {
	mu    sync.Mutex
	start time.Time
	done  time.Time
}

func (c *connectTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		ConnectStart: func(network, addr string) {
			c.mu.Lock()
			if c.start.IsZero() {
				c.start = time.Now()
			}
			c.mu.Unlock()
		},
		ConnectDone: func(network, addr string, err error) {
			c.mu.Lock()
			c.done = time.Now()
			c.mu.Unlock()
		},
	}
}

// millis returns 0 for reused connections.
func (c *connectTimer) millis() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() || c.done.Before(c.start) {
		return 0
	}
	return float64(c.done.Sub(c.start)) / float64(time.Millisecond)
}
