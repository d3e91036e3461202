// Package exporter serves live run metrics in the Prometheus text format.
package exporter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wesleyorama2/steadyrate/internal/performance/metrics"
)

const namespace = "steadyrate"

// Source provides point-in-time metric samples.
type Source interface {
	Snapshot() []metrics.Sample
}

// Collector exposes every sample of a Source, labelled by metric name.
type Collector struct {
	source Source

	counter *prometheus.Desc
	gauge   *prometheus.Desc
	rate    *prometheus.Desc
	trend   *prometheus.Desc
	samples *prometheus.Desc
}

// NewCollector creates a collector reading from source on every scrape.
func NewCollector(source Source, run string) *Collector {
	labels := prometheus.Labels{"run": run}
	return &Collector{
		source: source,
		counter: prometheus.NewDesc(namespace+"_counter_total",
			"Sum of a counter metric.", []string{"metric"}, labels),
		gauge: prometheus.NewDesc(namespace+"_gauge",
			"Last value of a gauge metric.", []string{"metric"}, labels),
		rate: prometheus.NewDesc(namespace+"_rate_ratio",
			"Share of non-zero samples of a rate metric.", []string{"metric"}, labels),
		trend: prometheus.NewDesc(namespace+"_trend_milliseconds",
			"Summary statistic of a trend metric.", []string{"metric", "stat"}, labels),
		samples: prometheus.NewDesc(namespace+"_samples_total",
			"Number of samples recorded for a metric.", []string{"metric"}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.counter
	ch <- c.gauge
	ch <- c.rate
	ch <- c.trend
	ch <- c.samples
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(s.Count), s.Name)

		switch s.Kind {
		case metrics.KindCounter:
			ch <- prometheus.MustNewConstMetric(c.counter, prometheus.CounterValue, s.Sum, s.Name)
		case metrics.KindGauge:
			ch <- prometheus.MustNewConstMetric(c.gauge, prometheus.GaugeValue, s.Value, s.Name)
		case metrics.KindRate:
			ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, s.Rate(), s.Name)
		case metrics.KindTrend:
			for _, stat := range []struct {
				name  string
				value float64
			}{
				{"avg", s.Avg()}, {"min", s.Min}, {"max", s.Max},
				{"p50", s.P50}, {"p90", s.P90}, {"p95", s.P95}, {"p99", s.P99},
			} {
				ch <- prometheus.MustNewConstMetric(c.trend, prometheus.GaugeValue, stat.value, s.Name, stat.name)
			}
		}
	}
}

// Server serves /metrics and /health while a run is in progress.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
	done     chan struct{}
}

// NewRouter returns the exporter routes for registry.
func NewRouter(registry *prometheus.Registry) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

// Start listens on addr and serves collector in the background.
func Start(addr string, collector *Collector, logger zerolog.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		server: &http.Server{
			Handler:           NewRouter(registry),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger.With().Str("component", "exporter").Logger(),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server and waits for it to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
