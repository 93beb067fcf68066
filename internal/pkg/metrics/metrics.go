// Package metrics collects per-run counters for the scraper. The process is a
// one-shot CLI, so instead of serving /metrics the registry is dumped to a
// node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sofascore_scraper"

// Recorder is safe to use as a nil pointer: every method becomes a no-op.
type Recorder struct {
	registry *prometheus.Registry

	endpointRequests *prometheus.CounterVec
	events           *prometheus.CounterVec
	captcha          *prometheus.CounterVec
	matches          *prometheus.GaugeVec
	runDuration      *prometheus.GaugeVec
	lastRun          prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.endpointRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_requests_total",
		Help:      "API endpoint attempts by outcome.",
	}, []string{"endpoint", "outcome"})
	r.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Raw events offered to the deduplicator by source and verdict.",
	}, []string{"source", "verdict"})
	r.captcha = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captcha_total",
		Help:      "Challenge detections and resolution outcomes.",
	}, []string{"result"})
	r.matches = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "matches",
		Help:      "Matches returned by the last run.",
	}, []string{"method"})
	r.runDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	}, []string{"method"})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})

	r.registry.MustRegister(r.endpointRequests, r.events, r.captcha, r.matches, r.runDuration, r.lastRun)
	return r
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) EndpointRequest(endpoint, outcome string) {
	if r == nil {
		return
	}
	r.endpointRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (r *Recorder) Event(source, verdict string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(source, verdict).Inc()
}

// Captcha counts "detected", "solved" and "timed_out".
func (r *Recorder) Captcha(result string) {
	if r == nil {
		return
	}
	r.captcha.WithLabelValues(result).Inc()
}

func (r *Recorder) RunFinished(method string, matches int, took time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(method).Set(float64(matches))
	r.runDuration.WithLabelValues(method).Set(took.Seconds())
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
