// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecoroute"

const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics is safe to use as a nil pointer, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StageTasks        *prometheus.CounterVec
	StageTaskDuration *prometheus.HistogramVec
	QueuePollErrors   *prometheus.CounterVec
	QueuePublished    *prometheus.CounterVec
	RiskScores        prometheus.Histogram
	RouteQueries      *prometheus.CounterVec
	LLMCalls          *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		StageTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stage_tasks_total",
			Help:        "Messages handled by a pipeline stage, by outcome",
			ConstLabels: constLabels,
		}, []string{"stage", "outcome"}),
		StageTaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "stage_task_duration_seconds",
			Help:        "Time spent handling one message",
			ConstLabels: constLabels,
			Buckets:     []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		QueuePollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_poll_errors_total",
			Help:        "Failed blocking pops, by topic",
			ConstLabels: constLabels,
		}, []string{"topic"}),
		QueuePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_published_total",
			Help:        "Messages pushed, by topic",
			ConstLabels: constLabels,
		}, []string{"topic"}),
		RiskScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "risk_scores",
			Help:        "Distribution of assessed shipment risk scores",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 0.1, 11),
		}),
		RouteQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "route_queries_total",
			Help:        "Route graph queries, by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "llm_calls_total",
			Help:        "Model calls, by provider and outcome",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests served, by route and status",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.StageTasks,
		m.StageTaskDuration,
		m.QueuePollErrors,
		m.QueuePublished,
		m.RiskScores,
		m.RouteQueries,
		m.LLMCalls,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTask(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageTasks.WithLabelValues(stage, outcome).Inc()
	m.StageTaskDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) PollError(topic string) {
	if m == nil {
		return
	}
	m.QueuePollErrors.WithLabelValues(topic).Inc()
}

func (m *Metrics) Published(topic string) {
	if m == nil {
		return
	}
	m.QueuePublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) RiskScore(score float64) {
	if m == nil {
		return
	}
	m.RiskScores.Observe(score)
}

func (m *Metrics) RouteQuery(outcome string) {
	if m == nil {
		return
	}
	m.RouteQueries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMCall(provider, outcome string) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}
