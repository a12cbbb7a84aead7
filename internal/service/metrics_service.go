package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thutoworks/thuto-api/internal/authz"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	decisionTotal   *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	decisionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Authorization decisions by action and outcome",
	}, []string{"action", "outcome"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "background_job_duration_seconds",
		Help:    "Duration of background jobs in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "status"})

	registry.MustRegister(requestDuration, requestTotal, decisionTotal, jobDuration)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		decisionTotal:   decisionTotal,
		jobDuration:     jobDuration,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveDecision records an authorization decision. Shaped to plug
// straight into the engine's observer hook.
func (s *MetricsService) ObserveDecision(action authz.Action, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "permit"
	}
	s.decisionTotal.WithLabelValues(string(action), outcome).Inc()
}

// ObserveJob records a finished background job.
func (s *MetricsService) ObserveJob(jobType, status string, duration time.Duration) {
	s.jobDuration.WithLabelValues(jobType, status).Observe(duration.Seconds())
}
