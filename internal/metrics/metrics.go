// Package metrics holds the Prometheus collectors for the intake service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	LeadsIngested    *prometheus.CounterVec
	PipelineOutcomes *prometheus.CounterVec
	ReportPaths      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	LookupErrors     *prometheus.CounterVec
}

// New creates a Metrics instance registered on a fresh registry that also
// carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LeadsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_ingested_total",
				Help: "Slack lead alerts handled, by result",
			},
			[]string{"result"}, // pending, invalid, duplicate, ignored
		),
		PipelineOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_pipeline_outcomes_total",
				Help: "Pipeline runs by final lead status",
			},
			[]string{"status"},
		),
		ReportPaths: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_reports_total",
				Help: "Reports built, by generation path",
			},
			[]string{"path"}, // llm, fallback
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lead_pipeline_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		LookupErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_lookup_errors_total",
				Help: "Failed CRM and meeting lookups",
			},
			[]string{"service"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordIngest counts one handled lead alert.
func (m *Metrics) RecordIngest(result string) {
	if m == nil {
		return
	}
	m.LeadsIngested.WithLabelValues(result).Inc()
}

// RecordOutcome counts one finished pipeline run.
func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.PipelineOutcomes.WithLabelValues(status).Inc()
}

// RecordReportPath counts a report built via path ("llm" or "fallback").
func (m *Metrics) RecordReportPath(path string) {
	if m == nil {
		return
	}
	m.ReportPaths.WithLabelValues(path).Inc()
}

// ObserveStage records the time since start for a pipeline stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordLookupError counts a failed panel lookup.
func (m *Metrics) RecordLookupError(service string) {
	if m == nil {
		return
	}
	m.LookupErrors.WithLabelValues(service).Inc()
}

// RecordHTTP records one served request. route should be the route
// pattern, not the raw path.
func (m *Metrics) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
