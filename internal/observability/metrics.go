package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	submissionsTotal      *prometheus.CounterVec
	submissionLatency     *prometheus.HistogramVec
	fileRejectionsTotal   *prometheus.CounterVec
	activeSessions        prometheus.Gauge
	reviewEventsPublished *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the console.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codereview_http_requests_total",
			Help: "Total number of console API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codereview_http_latency_seconds",
			Help:    "Latency distribution for console API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codereview_http_errors_total",
			Help: "Total number of error responses returned by console endpoints.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codereview_submissions_total",
			Help: "Submission attempts by input mode and outcome.",
		}, []string{"mode", "outcome"})

		submissionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codereview_submission_latency_seconds",
			Help:    "Time spent in the submitting phase.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"mode"})

		fileRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codereview_file_rejections_total",
			Help: "Files rejected at selection time by reason.",
		}, []string{"reason"})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codereview_active_sessions",
			Help: "Number of live console sessions.",
		})

		reviewEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codereview_events_published_total",
			Help: "Review lifecycle events published to the broker.",
		}, []string{"phase"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionsTotal,
			submissionLatency,
			fileRejectionsTotal,
			activeSessions,
			reviewEventsPublished,
		)
	})
}

// HTTPRequests exposes the counter for console requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for console requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for console error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Submissions exposes the submission outcome counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// SubmissionLatency exposes the submitting-phase histogram.
func SubmissionLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return submissionLatency
}

// FileRejections exposes the counter of rejected file selections.
func FileRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return fileRejectionsTotal
}

// ActiveSessions exposes the live session gauge.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}

// ReviewEventsPublished exposes the counter of published lifecycle events.
func ReviewEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewEventsPublished
}
