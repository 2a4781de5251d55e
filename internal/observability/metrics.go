package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	intakeOutcomes  *prometheus.CounterVec
	workflowActions *prometheus.CounterVec
	attachmentFails prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "travel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_http_errors_total",
			Help: "Error responses by route and error code",
		}, []string{"route", "method", "code"}),
		intakeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_intake_outcomes_total",
			Help: "Intake results by source and outcome",
		}, []string{"source", "outcome"}),
		workflowActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_workflow_actions_total",
			Help: "Task actions applied by step and action",
		}, []string{"step", "action"}),
		attachmentFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "travel_intake_attachment_failures_total",
			Help: "Attachments that could not be stored during intake",
		}),
	}
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordIntake counts one intake outcome.
func (m *Metrics) RecordIntake(source, outcome string) {
	if m == nil {
		return
	}
	m.intakeOutcomes.WithLabelValues(source, outcome).Inc()
}

// RecordWorkflowAction counts one applied task action.
func (m *Metrics) RecordWorkflowAction(step, action string) {
	if m == nil {
		return
	}
	m.workflowActions.WithLabelValues(step, action).Inc()
}

// RecordAttachmentFailure counts one attachment dropped from an intake batch.
func (m *Metrics) RecordAttachmentFailure() {
	if m == nil {
		return
	}
	m.attachmentFails.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
