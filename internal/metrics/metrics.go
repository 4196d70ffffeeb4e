// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mosaic"

// Metrics groups the service collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	aiFallbacks   *prometheus.CounterVec
	aiCompletions *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	emailsSent    *prometheus.CounterVec
	workerRuns    *prometheus.CounterVec
}

// New registers the collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		aiFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_provider_failures_total",
			Help:      "AI provider failures that moved the chain to the next provider.",
		}, []string{"provider", "reason"}),
		aiCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completions_total",
			Help:      "Completed AI requests by answering provider.",
		}, []string{"provider"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_webhook_events_total",
			Help:      "Payment webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Transactional emails by template and result.",
		}, []string{"template", "result"}),
		workerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_job_runs_total",
			Help:      "Worker job executions by job and result.",
		}, []string{"job", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.aiFallbacks,
		m.aiCompletions,
		m.webhookEvents,
		m.emailsSent,
		m.workerRuns,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) AIFallback(provider, reason string) {
	m.aiFallbacks.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) AICompletion(provider string) {
	m.aiCompletions.WithLabelValues(provider).Inc()
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Email(template string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.emailsSent.WithLabelValues(template, result).Inc()
}

func (m *Metrics) WorkerRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.workerRuns.WithLabelValues(job, result).Inc()
}
